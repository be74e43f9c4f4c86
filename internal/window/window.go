// Package window partitions the token space left between anchors into
// bounded sub-ranges for fine-grained alignment. Windows are pure index
// arithmetic: the builder never touches token content.
package window

import (
	"fmt"

	"bookalign/internal/anchor"
)

// Window is a pair of half-open filtered-index ranges still requiring
// fine-grained alignment: book side [BookLo, BookHi), transcript side
// [ASRLo, ASRHi). One side may be empty (a pure insertion or deletion gap).
type Window struct {
	BookLo int `json:"bookLo"`
	BookHi int `json:"bookHi"`
	ASRLo  int `json:"asrLo"`
	ASRHi  int `json:"asrHi"`
}

// BookLen returns the book-side span of the window.
func (w Window) BookLen() int { return w.BookHi - w.BookLo }

// ASRLen returns the transcript-side span of the window.
func (w Window) ASRLen() int { return w.ASRHi - w.ASRLo }

// Build converts a monotonic anchor set plus the sequence bounds into the
// ordered, non-overlapping window list covering every index that is not an
// anchor position. Bounds are half-open: bookEnd and asrEnd are one past the
// last valid index. An empty anchor list yields a single full-span window
// (when either side is non-empty). Anchors must lie inside the bounds and be
// strictly increasing on both sides; violations are structural errors.
func Build(anchors []anchor.Anchor, bookStart, bookEnd, asrStart, asrEnd int) ([]Window, error) {
	if bookStart < 0 || asrStart < 0 || bookEnd < bookStart || asrEnd < asrStart {
		return nil, fmt.Errorf("invalid bounds: book [%d,%d) asr [%d,%d)", bookStart, bookEnd, asrStart, asrEnd)
	}
	for i, a := range anchors {
		if a.BookPos < bookStart || a.BookPos >= bookEnd || a.ASRPos < asrStart || a.ASRPos >= asrEnd {
			return nil, fmt.Errorf("anchor %d (%d,%d) outside bounds book [%d,%d) asr [%d,%d)",
				i, a.BookPos, a.ASRPos, bookStart, bookEnd, asrStart, asrEnd)
		}
		if i > 0 && (a.BookPos <= anchors[i-1].BookPos || a.ASRPos <= anchors[i-1].ASRPos) {
			return nil, fmt.Errorf("anchor %d (%d,%d) not strictly after anchor %d (%d,%d)",
				i, a.BookPos, a.ASRPos, i-1, anchors[i-1].BookPos, anchors[i-1].ASRPos)
		}
	}

	// Sentinel anchors one step outside each bound make the first and last
	// gaps fall out of the same pairwise loop. They are never dereferenced
	// as token positions.
	bounded := make([]anchor.Anchor, 0, len(anchors)+2)
	bounded = append(bounded, anchor.Anchor{BookPos: bookStart - 1, ASRPos: asrStart - 1})
	bounded = append(bounded, anchors...)
	bounded = append(bounded, anchor.Anchor{BookPos: bookEnd, ASRPos: asrEnd})

	var windows []Window
	for i := 1; i < len(bounded); i++ {
		left, right := bounded[i-1], bounded[i]
		w := Window{
			BookLo: max(bookStart, left.BookPos+1),
			BookHi: min(bookEnd, right.BookPos),
			ASRLo:  max(asrStart, left.ASRPos+1),
			ASRHi:  min(asrEnd, right.ASRPos),
		}
		if w.BookLen() > 0 || w.ASRLen() > 0 {
			windows = append(windows, w)
		}
	}
	return windows, nil
}
