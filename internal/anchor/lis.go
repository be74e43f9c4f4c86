package anchor

import "sort"

// longestIncreasing reduces candidate anchors to the longest subsequence
// that is strictly increasing on both sides. Candidates are first sorted by
// book position (ties broken by transcript position, keeping the result
// deterministic regardless of candidate generation order), then a patience
// LIS over transcript positions discards every crossing pair. O(n log n).
func longestIncreasing(candidates []Anchor) []Anchor {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]Anchor, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].BookPos != sorted[j].BookPos {
			return sorted[i].BookPos < sorted[j].BookPos
		}
		return sorted[i].ASRPos < sorted[j].ASRPos
	})

	// tails[l] is the index in sorted of the smallest ASRPos ending an
	// increasing subsequence of length l+1; prev holds back-pointers for
	// reconstruction.
	tails := make([]int, 0, len(sorted))
	prev := make([]int, len(sorted))

	for i, a := range sorted {
		pos := sort.Search(len(tails), func(k int) bool {
			return sorted[tails[k]].ASRPos >= a.ASRPos
		})
		if pos > 0 {
			prev[i] = tails[pos-1]
		} else {
			prev[i] = -1
		}
		if pos == len(tails) {
			tails = append(tails, i)
		} else {
			tails[pos] = i
		}
	}

	result := make([]Anchor, len(tails))
	for i, at := len(tails)-1, tails[len(tails)-1]; i >= 0; i-- {
		result[i] = sorted[at]
		at = prev[at]
	}
	return result
}
