package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookalign/internal/anchor"
)

func TestBuild(t *testing.T) {
	t.Run("should produce the leading gap before the first anchor", func(t *testing.T) {
		// Arrange
		anchors := []anchor.Anchor{{BookPos: 10, ASRPos: 20}, {BookPos: 30, ASRPos: 40}}

		// Act
		windows, err := Build(anchors, 0, 50, 0, 60)

		// Assert
		require.NoError(t, err)
		require.NotEmpty(t, windows)
		assert.Equal(t, Window{BookLo: 0, BookHi: 10, ASRLo: 0, ASRHi: 20}, windows[0])
	})

	t.Run("should cover every non-anchor index exactly once", func(t *testing.T) {
		anchors := []anchor.Anchor{{BookPos: 10, ASRPos: 20}, {BookPos: 30, ASRPos: 40}}

		windows, err := Build(anchors, 0, 50, 0, 60)

		require.NoError(t, err)
		covered := make(map[int]int)
		for _, w := range windows {
			for i := w.BookLo; i < w.BookHi; i++ {
				covered[i]++
			}
		}
		for i := 0; i < 50; i++ {
			if i == 10 || i == 30 {
				assert.Zero(t, covered[i], "anchor position %d must not be in a window", i)
				continue
			}
			assert.Equal(t, 1, covered[i], "book index %d must be covered exactly once", i)
		}
	})

	t.Run("should produce ordered non-overlapping windows", func(t *testing.T) {
		anchors := []anchor.Anchor{{BookPos: 5, ASRPos: 7}, {BookPos: 12, ASRPos: 13}, {BookPos: 20, ASRPos: 30}}

		windows, err := Build(anchors, 0, 40, 0, 45)

		require.NoError(t, err)
		for i := 1; i < len(windows); i++ {
			assert.LessOrEqual(t, windows[i-1].BookHi, windows[i].BookLo)
			assert.LessOrEqual(t, windows[i-1].ASRHi, windows[i].ASRLo)
		}
	})

	t.Run("should degrade to a single full-span window without anchors", func(t *testing.T) {
		windows, err := Build(nil, 0, 50, 0, 60)

		require.NoError(t, err)
		require.Len(t, windows, 1)
		assert.Equal(t, Window{BookLo: 0, BookHi: 50, ASRLo: 0, ASRHi: 60}, windows[0])
	})

	t.Run("should skip empty gaps between adjacent anchors", func(t *testing.T) {
		anchors := []anchor.Anchor{{BookPos: 0, ASRPos: 0}, {BookPos: 1, ASRPos: 1}}

		windows, err := Build(anchors, 0, 2, 0, 2)

		require.NoError(t, err)
		assert.Empty(t, windows, "adjacent anchors leave no gap to align")
	})

	t.Run("should emit an insertion-only window when one side has span", func(t *testing.T) {
		anchors := []anchor.Anchor{{BookPos: 0, ASRPos: 0}, {BookPos: 1, ASRPos: 5}}

		windows, err := Build(anchors, 0, 2, 0, 6)

		require.NoError(t, err)
		require.Len(t, windows, 1)
		assert.Equal(t, 0, windows[0].BookLen())
		assert.Equal(t, 4, windows[0].ASRLen())
	})

	t.Run("should return empty result for zero-length inputs", func(t *testing.T) {
		windows, err := Build(nil, 0, 0, 0, 0)

		require.NoError(t, err)
		assert.Empty(t, windows)
	})

	t.Run("should reject anchors outside the bounds", func(t *testing.T) {
		anchors := []anchor.Anchor{{BookPos: 99, ASRPos: 5}}

		_, err := Build(anchors, 0, 50, 0, 60)

		assert.Error(t, err)
	})

	t.Run("should reject non-monotonic anchors", func(t *testing.T) {
		anchors := []anchor.Anchor{{BookPos: 10, ASRPos: 20}, {BookPos: 15, ASRPos: 18}}

		_, err := Build(anchors, 0, 50, 0, 60)

		assert.Error(t, err)
	})

	t.Run("should reject inverted bounds", func(t *testing.T) {
		_, err := Build(nil, 10, 5, 0, 0)

		assert.Error(t, err)
	})
}
