package aligner

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookalign/internal/anchor"
	"bookalign/internal/window"
)

func fullWindow(bookLen, asrLen int) []window.Window {
	return []window.Window{{BookLo: 0, BookHi: bookLen, ASRLo: 0, ASRHi: asrLen}}
}

// bookCoverage collects how often each book index appears across records.
func bookCoverage(records []WordAlign) map[int]int {
	covered := make(map[int]int)
	for _, r := range records {
		if r.BookIdx != nil {
			covered[*r.BookIdx]++
		}
	}
	return covered
}

func TestAlignIdentity(t *testing.T) {
	t.Run("should produce all matches for identical sequences", func(t *testing.T) {
		// Arrange
		tokens := []string{"the", "black", "forest", "was", "dark"}
		al := NewAligner(DefaultOptions())

		// Act
		records, err := al.Align(context.Background(), tokens, tokens, nil, fullWindow(5, 5))

		// Assert
		require.NoError(t, err)
		require.Len(t, records, 5)
		for i, r := range records {
			assert.Equal(t, OpMatch, r.Op)
			assert.Equal(t, i, *r.BookIdx)
			assert.Equal(t, i, *r.ASRIdx)
			assert.Equal(t, 1.0, r.Score)
		}
	})
}

func TestAlignWindow(t *testing.T) {
	t.Run("should classify a substitution with a similarity score", func(t *testing.T) {
		al := NewAligner(DefaultOptions())

		records := al.AlignWindow([]string{"forest"}, []string{"forrest"}, 0, 0)

		require.Len(t, records, 1)
		assert.Equal(t, OpSub, records[0].Op)
		assert.Equal(t, "sub", records[0].Reason)
		assert.Greater(t, records[0].Score, 0.8, "near-homophone should score high")
		assert.Less(t, records[0].Score, 1.0)
	})

	t.Run("should treat filler tokens as cheap insertions", func(t *testing.T) {
		al := NewAligner(DefaultOptions())

		records := al.AlignWindow(
			[]string{"the", "forest"},
			[]string{"the", "um", "forest"}, 0, 0)

		require.Len(t, records, 3)
		assert.Equal(t, OpIns, records[1].Op)
		assert.Equal(t, "filler", records[1].Reason)
		assert.Equal(t, OpMatch, records[0].Op)
		assert.Equal(t, OpMatch, records[2].Op)
	})

	t.Run("should align equivalence-table variants as near-matches", func(t *testing.T) {
		al := NewAligner(DefaultOptions())

		records := al.AlignWindow([]string{"grey", "walls"}, []string{"gray", "walls"}, 0, 0)

		require.Len(t, records, 2)
		assert.Equal(t, OpSub, records[0].Op)
		assert.Equal(t, "equiv", records[0].Reason)
		assert.Equal(t, equivScore, records[0].Score)
	})

	t.Run("should emit deletions for missing words", func(t *testing.T) {
		al := NewAligner(DefaultOptions())

		records := al.AlignWindow([]string{"a1", "b2", "c3"}, []string{"a1", "c3"}, 0, 0)

		require.Len(t, records, 3)
		assert.Equal(t, OpDel, records[1].Op)
		assert.Equal(t, 1, *records[1].BookIdx)
		assert.Nil(t, records[1].ASRIdx)
	})

	t.Run("should translate window offsets to absolute coordinates", func(t *testing.T) {
		al := NewAligner(DefaultOptions())

		records := al.AlignWindow([]string{"x9", "y8"}, []string{"x9", "y8"}, 100, 200)

		require.Len(t, records, 2)
		assert.Equal(t, 100, *records[0].BookIdx)
		assert.Equal(t, 200, *records[0].ASRIdx)
		assert.Equal(t, 101, *records[1].BookIdx)
		assert.Equal(t, 201, *records[1].ASRIdx)
	})

	t.Run("should return nothing for an empty window", func(t *testing.T) {
		al := NewAligner(DefaultOptions())

		assert.Empty(t, al.AlignWindow(nil, nil, 0, 0))
	})

	t.Run("should prefer a match over an ins plus del pair", func(t *testing.T) {
		al := NewAligner(DefaultOptions())

		records := al.AlignWindow(
			[]string{"night", "fell", "fast"},
			[]string{"night", "came", "fast"}, 0, 0)

		require.Len(t, records, 3)
		assert.Equal(t, OpMatch, records[0].Op)
		assert.Equal(t, OpSub, records[1].Op)
		assert.Equal(t, OpMatch, records[2].Op)
	})
}

func TestAlign(t *testing.T) {
	t.Run("should union anchor matches with window operations in order", func(t *testing.T) {
		// Arrange: anchor in the middle, gaps on both sides.
		bookTokens := []string{"w0", "w1", "w2", "w3", "w4"}
		asrTokens := []string{"w0", "w1", "w2", "w3", "w4"}
		anchors := []anchor.Anchor{{BookPos: 2, ASRPos: 2}}
		windows, err := window.Build(anchors, 0, 5, 0, 5)
		require.NoError(t, err)
		al := NewAligner(DefaultOptions())

		// Act
		records, err := al.Align(context.Background(), bookTokens, asrTokens, anchors, windows)

		// Assert
		require.NoError(t, err)
		require.Len(t, records, 5)
		assert.Equal(t, "anchor", records[2].Reason)
		covered := bookCoverage(records)
		for i := 0; i < 5; i++ {
			assert.Equal(t, 1, covered[i], "book index %d covered exactly once", i)
		}
	})

	t.Run("should keep the mapping monotonic and non-crossing", func(t *testing.T) {
		bookTokens := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"}
		asrTokens := []string{"alpha", "bravo", "zulu", "delta", "echo", "foxtrot"}
		al := NewAligner(DefaultOptions())

		records, err := al.Align(context.Background(), bookTokens, asrTokens, nil, fullWindow(6, 6))

		require.NoError(t, err)
		lastBook, lastASR := -1, -1
		for _, r := range records {
			if r.BookIdx == nil || r.ASRIdx == nil {
				continue
			}
			assert.Greater(t, *r.BookIdx, lastBook)
			assert.GreaterOrEqual(t, *r.ASRIdx, lastASR)
			lastBook, lastASR = *r.BookIdx, *r.ASRIdx
		}
	})

	t.Run("should be deterministic with concurrent windows", func(t *testing.T) {
		var bookTokens, asrTokens []string
		for i := 0; i < 400; i++ {
			bookTokens = append(bookTokens, fmt.Sprintf("w%d", i))
			asrTokens = append(asrTokens, fmt.Sprintf("w%d", i))
		}
		var anchors []anchor.Anchor
		for p := 50; p < 400; p += 50 {
			anchors = append(anchors, anchor.Anchor{BookPos: p, ASRPos: p})
		}
		windows, err := window.Build(anchors, 0, 400, 0, 400)
		require.NoError(t, err)
		opts := DefaultOptions()
		opts.Workers = 4
		al := NewAligner(opts)

		first, err := al.Align(context.Background(), bookTokens, asrTokens, anchors, windows)
		require.NoError(t, err)
		for run := 0; run < 3; run++ {
			again, err := al.Align(context.Background(), bookTokens, asrTokens, anchors, windows)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})

	t.Run("should reject windows outside the token ranges", func(t *testing.T) {
		al := NewAligner(DefaultOptions())

		_, err := al.Align(context.Background(), []string{"a"}, []string{"a"},
			nil, []window.Window{{BookLo: 0, BookHi: 5, ASRLo: 0, ASRHi: 1}})

		assert.Error(t, err)
	})

	t.Run("should stop when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		al := NewAligner(DefaultOptions())

		_, err := al.Align(ctx, []string{"a"}, []string{"a"}, nil, fullWindow(1, 1))

		assert.Error(t, err)
	})

	t.Run("should handle zero anchors and zero windows", func(t *testing.T) {
		al := NewAligner(DefaultOptions())

		records, err := al.Align(context.Background(), nil, nil, nil, nil)

		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestWordAlignValidate(t *testing.T) {
	t.Run("should accept constructor-built records", func(t *testing.T) {
		assert.NoError(t, Match(1, 2, "match", 1.0).Validate())
		assert.NoError(t, Sub(1, 2, "sub", 0.5).Validate())
		assert.NoError(t, Ins(2, "ins").Validate())
		assert.NoError(t, Del(1, "del").Validate())
	})

	t.Run("should reject hand-built records missing an index", func(t *testing.T) {
		assert.Error(t, WordAlign{Op: OpMatch}.Validate())
		assert.Error(t, WordAlign{Op: OpIns}.Validate())
		assert.Error(t, WordAlign{Op: OpDel}.Validate())
	})

	t.Run("should reject scores outside the unit interval", func(t *testing.T) {
		rec := Match(1, 2, "match", 1.0)
		rec.Score = 1.5

		assert.Error(t, rec.Validate())
	})
}

func TestOpText(t *testing.T) {
	t.Run("should round-trip every operation through JSON", func(t *testing.T) {
		for _, op := range []Op{OpMatch, OpSub, OpIns, OpDel} {
			// Arrange
			rec := Match(0, 0, "", 1.0)
			rec.Op = op

			// Act
			data, err := json.Marshal(rec)
			require.NoError(t, err)

			var decoded WordAlign
			require.NoError(t, json.Unmarshal(data, &decoded))

			// Assert
			assert.Equal(t, op, decoded.Op)
		}
	})

	t.Run("should reject unknown operation names", func(t *testing.T) {
		var decoded WordAlign

		err := json.Unmarshal([]byte(`{"bookIdx":0,"asrIdx":0,"op":"bogus"}`), &decoded)

		assert.Error(t, err)
	})
}
