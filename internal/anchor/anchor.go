// Package anchor discovers high-confidence position correspondences between
// the filtered book token stream and the filtered transcript token stream.
// Anchors are unique n-gram matches reduced to a monotonic subsequence; they
// bound the windows inside which the expensive edit-distance alignment runs.
package anchor

import (
	"strings"

	"go.uber.org/zap"
)

// Anchor pairs a book position with a transcript position, both in filtered
// coordinate space. Across a selected anchor set, sorting by BookPos yields
// strictly increasing ASRPos.
type Anchor struct {
	BookPos int `json:"bookPos"`
	ASRPos  int `json:"asrPos"`
}

// Policy carries the anchor discovery knobs. The zero value is not usable;
// start from DefaultPolicy.
type Policy struct {
	// NGramSize is the initial n-gram size. Discovery relaxes toward
	// minNGramSize when anchor density falls short.
	NGramSize int
	// TargetPerTokens is the desired density: one anchor per this many
	// book tokens.
	TargetPerTokens int
	// MinSeparation is the minimum distance between two occurrences of the
	// same n-gram for it to remain an anchor candidate in the relaxed
	// (two-occurrence) pass.
	MinSeparation int
	// Stopwords are never allowed at an n-gram edge, and an n-gram must
	// contain at least two non-stopword tokens to qualify.
	Stopwords map[string]bool
	// AllowSentenceCross permits anchors whose n-gram spans a sentence
	// boundary on the book side.
	AllowSentenceCross bool
}

// minNGramSize is the relaxation floor. Below bigrams the edge-stopword rule
// cannot hold and single-token anchors are too noisy to trust.
const minNGramSize = 2

// defaultStopwords are high-frequency function words that carry no anchoring
// signal on their own.
var defaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "from",
	"had", "has", "have", "he", "her", "his", "i", "in", "is", "it", "its",
	"not", "of", "on", "or", "she", "that", "the", "their", "they", "this",
	"to", "was", "were", "with", "you",
}

// DefaultPolicy returns the standard discovery policy: trigrams, one anchor
// per 50 book tokens, relaxed occurrences at least 25 tokens apart, and no
// sentence-crossing anchors.
func DefaultPolicy() Policy {
	stop := make(map[string]bool, len(defaultStopwords))
	for _, w := range defaultStopwords {
		stop[w] = true
	}
	return Policy{
		NGramSize:       3,
		TargetPerTokens: 50,
		MinSeparation:   25,
		Stopwords:       stop,
	}
}

// Selector runs anchor discovery under a fixed policy.
type Selector struct {
	policy Policy
	logger *zap.Logger
}

// NewSelector creates a Selector with the given policy.
func NewSelector(policy Policy) *Selector {
	return NewSelectorWithLogger(policy, nil)
}

// NewSelectorWithLogger creates a Selector with the given policy and logger.
func NewSelectorWithLogger(policy Policy, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.NGramSize < minNGramSize {
		policy.NGramSize = minNGramSize
	}
	if policy.TargetPerTokens <= 0 {
		policy.TargetPerTokens = 50
	}
	return &Selector{policy: policy, logger: logger}
}

// SelectAnchors discovers anchors over the full book range. sentenceOf maps
// a filtered book position to its sentence index; pass nil when sentence
// metadata is unavailable, which disables the boundary restriction.
func (s *Selector) SelectAnchors(bookTokens []string, sentenceOf func(int) int, asrTokens []string) []Anchor {
	return s.SelectAnchorsInRange(bookTokens, sentenceOf, asrTokens, 0, len(bookTokens))
}

// SelectAnchorsInRange discovers anchors with the book side restricted to
// the half-open range [bookLo, bookHi). Anchor positions are still reported
// in absolute filtered coordinates. Zero anchors is a valid outcome; the
// caller degrades to a single full-span window.
func (s *Selector) SelectAnchorsInRange(bookTokens []string, sentenceOf func(int) int, asrTokens []string, bookLo, bookHi int) []Anchor {
	if bookLo < 0 {
		bookLo = 0
	}
	if bookHi > len(bookTokens) {
		bookHi = len(bookTokens)
	}
	if bookLo >= bookHi || len(asrTokens) == 0 {
		return nil
	}

	span := bookHi - bookLo
	target := span / s.policy.TargetPerTokens
	if target < 1 {
		target = 1
	}

	var candidates []Anchor
	for n := s.policy.NGramSize; n >= minNGramSize; n-- {
		candidates = s.candidates(bookTokens, sentenceOf, asrTokens, bookLo, bookHi, n, 1)
		if len(candidates) >= target {
			s.logger.Debug("anchor density reached",
				zap.Int("ngram", n),
				zap.Int("candidates", len(candidates)),
				zap.Int("target", target))
			break
		}
		relaxed := s.candidates(bookTokens, sentenceOf, asrTokens, bookLo, bookHi, n, 2)
		if len(relaxed) > len(candidates) {
			candidates = relaxed
		}
		if len(candidates) >= target {
			s.logger.Debug("anchor density reached after occurrence relaxation",
				zap.Int("ngram", n),
				zap.Int("candidates", len(candidates)),
				zap.Int("target", target))
			break
		}
		s.logger.Debug("anchor density short, reducing ngram size",
			zap.Int("ngram", n),
			zap.Int("candidates", len(candidates)),
			zap.Int("target", target))
	}

	anchors := longestIncreasing(candidates)
	s.logger.Info("anchor selection complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("anchors", len(anchors)),
		zap.Int("bookSpan", span),
		zap.Int("asrTokens", len(asrTokens)))
	return anchors
}

// candidates returns anchor candidates for one n-gram size. maxOccur 1 is
// the strict unique/unique pass; maxOccur 2 additionally admits n-grams
// occurring twice per side when the two occurrences sit at least
// MinSeparation tokens apart, pairing occurrences in order.
func (s *Selector) candidates(bookTokens []string, sentenceOf func(int) int, asrTokens []string, bookLo, bookHi, n, maxOccur int) []Anchor {
	bookIdx := ngramIndex(bookTokens[bookLo:bookHi], n)
	asrIdx := ngramIndex(asrTokens, n)

	var out []Anchor
	for gram, bPositions := range bookIdx {
		aPositions, ok := asrIdx[gram]
		if !ok {
			continue
		}
		if len(bPositions) > maxOccur || len(aPositions) > maxOccur || len(bPositions) != len(aPositions) {
			continue
		}
		if maxOccur > 1 {
			if !separated(bPositions, s.policy.MinSeparation) || !separated(aPositions, s.policy.MinSeparation) {
				continue
			}
		}
		if !s.contentOK(bookTokens, bPositions[0]+bookLo, n) {
			continue
		}
		for i := range bPositions {
			bp := bPositions[i] + bookLo
			if !s.sentenceOK(sentenceOf, bp, n) {
				continue
			}
			out = append(out, Anchor{BookPos: bp, ASRPos: aPositions[i]})
		}
	}
	return out
}

// ngramIndex maps each joined n-gram to its ordered start positions.
func ngramIndex(tokens []string, n int) map[string][]int {
	if n <= 0 || len(tokens) < n {
		return nil
	}
	index := make(map[string][]int, len(tokens))
	for i := 0; i+n <= len(tokens); i++ {
		gram := strings.Join(tokens[i:i+n], " ")
		index[gram] = append(index[gram], i)
	}
	return index
}

// separated reports whether consecutive positions are at least minSep apart.
func separated(positions []int, minSep int) bool {
	for i := 1; i < len(positions); i++ {
		if positions[i]-positions[i-1] < minSep {
			return false
		}
	}
	return true
}

// contentOK applies the stopword filter: no stopword at either edge and at
// least two non-stopword tokens inside the n-gram.
func (s *Selector) contentOK(tokens []string, start, n int) bool {
	if s.policy.Stopwords[tokens[start]] || s.policy.Stopwords[tokens[start+n-1]] {
		return false
	}
	content := 0
	for i := start; i < start+n; i++ {
		if !s.policy.Stopwords[tokens[i]] {
			content++
		}
	}
	return content >= 2
}

// sentenceOK rejects n-grams spanning a sentence boundary unless the policy
// allows them.
func (s *Selector) sentenceOK(sentenceOf func(int) int, start, n int) bool {
	if s.policy.AllowSentenceCross || sentenceOf == nil {
		return true
	}
	return sentenceOf(start) == sentenceOf(start+n-1)
}
