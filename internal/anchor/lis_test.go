package anchor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLongestIncreasing(t *testing.T) {
	t.Run("should drop crossing pairs", func(t *testing.T) {
		// Arrange
		candidates := []Anchor{{10, 50}, {20, 40}, {30, 60}}

		// Act
		result := longestIncreasing(candidates)

		// Assert
		require.Len(t, result, 2, "only two anchors can be mutually non-crossing")
		assert.Equal(t, 30, result[1].BookPos)
		for i := 1; i < len(result); i++ {
			assert.Greater(t, result[i].ASRPos, result[i-1].ASRPos)
			assert.Greater(t, result[i].BookPos, result[i-1].BookPos)
		}
	})

	t.Run("should keep an already increasing sequence intact", func(t *testing.T) {
		candidates := []Anchor{{1, 2}, {3, 4}, {5, 6}, {7, 8}}

		result := longestIncreasing(candidates)

		assert.Equal(t, candidates, result)
	})

	t.Run("should handle unsorted candidate order", func(t *testing.T) {
		candidates := []Anchor{{30, 60}, {10, 50}, {20, 40}}

		result := longestIncreasing(candidates)

		require.Len(t, result, 2)
		assert.Greater(t, result[1].ASRPos, result[0].ASRPos)
	})

	t.Run("should reduce a strictly decreasing sequence to one anchor", func(t *testing.T) {
		candidates := []Anchor{{1, 90}, {2, 80}, {3, 70}}

		result := longestIncreasing(candidates)

		assert.Len(t, result, 1)
	})

	t.Run("should return nil for no candidates", func(t *testing.T) {
		assert.Nil(t, longestIncreasing(nil))
	})

	t.Run("should not pick two anchors with equal transcript position", func(t *testing.T) {
		candidates := []Anchor{{1, 5}, {2, 5}, {3, 6}}

		result := longestIncreasing(candidates)

		require.Len(t, result, 2)
		assert.NotEqual(t, result[0].ASRPos, result[1].ASRPos)
	})
}
