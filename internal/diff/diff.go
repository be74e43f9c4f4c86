// Package diff computes token-level and character-level differences between
// a reference text (the book) and a hypothesis text (the transcript). Token
// diffing reuses the character diff algorithm by mapping each distinct token
// to a single synthetic rune, diffing the two encoded strings, and decoding
// the runs back into token lists. The encoding has a hard vocabulary
// ceiling; exceeding it is an explicit error, never silent corruption.
package diff

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"bookalign/internal/textnorm"
)

// Operation classifies one diff run.
type Operation int

const (
	// OpEqual marks tokens present on both sides.
	OpEqual Operation = iota
	// OpInsert marks tokens only in the hypothesis.
	OpInsert
	// OpDelete marks tokens only in the reference.
	OpDelete
)

// String returns the wire name of the operation.
func (op Operation) String() string {
	switch op {
	case OpEqual:
		return "equal"
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("operation(%d)", int(op))
	}
}

// MarshalText implements encoding.TextMarshaler so operations serialize as
// their wire names inside JSON artifacts.
func (op Operation) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

// UnmarshalText parses a wire name back into the operation.
func (op *Operation) UnmarshalText(text []byte) error {
	switch string(text) {
	case "equal":
		*op = OpEqual
	case "insert":
		*op = OpInsert
	case "delete":
		*op = OpDelete
	default:
		return fmt.Errorf("unknown diff operation %q", text)
	}
	return nil
}

// Op is one run of consecutive tokens sharing an operation.
type Op struct {
	Operation Operation `json:"operation"`
	Tokens    []string  `json:"tokens"`
}

// Stats aggregates token counts across a diff.
type Stats struct {
	ReferenceTokens  int `json:"referenceTokens"`
	HypothesisTokens int `json:"hypothesisTokens"`
	Matches          int `json:"matches"`
	Insertions       int `json:"insertions"`
	Deletions        int `json:"deletions"`
}

// Result is the full outcome of one Analyze call.
type Result struct {
	Stats    Stats   `json:"stats"`
	Ops      []Op    `json:"ops"`
	WER      float64 `json:"wer"`
	CER      float64 `json:"cer"`
	Coverage float64 `json:"coverage"`
}

// ErrTokenSpace reports that the two texts contain more distinct tokens than
// the single-rune encoding can address.
var ErrTokenSpace = errors.New("distinct token count exceeds diff encoding space")

// maxVocabulary keeps every synthetic code strictly below the UTF-16
// surrogate range, so each token is one valid rune in the encoded strings.
const maxVocabulary = 0xD7FF

// Analyze normalizes and tokenizes both texts with the alignment pipeline's
// rules, then computes a token-level diff, aggregate statistics, and the
// word/character error rates. Empty inputs are valid and produce empty
// results. The only error condition is ErrTokenSpace.
func Analyze(referenceText, hypothesisText string) (Result, error) {
	refTokens := textnorm.Tokenize(referenceText)
	hypTokens := textnorm.Tokenize(hypothesisText)
	return AnalyzeTokens(refTokens, hypTokens)
}

// AnalyzeTokens is Analyze for callers that already hold normalized token
// slices, such as the rollup stage working in filtered coordinate space.
func AnalyzeTokens(refTokens, hypTokens []string) (Result, error) {
	encRef, encHyp, err := encodeTokens(refTokens, hypTokens)
	if err != nil {
		return Result{}, err
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(encRef, encHyp, false)

	result := Result{
		Stats: Stats{
			ReferenceTokens:  len(refTokens),
			HypothesisTokens: len(hypTokens),
		},
	}

	refAt, hypAt := 0, 0
	for _, d := range diffs {
		runLen := len([]rune(d.Text))
		if runLen == 0 {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			result.Ops = append(result.Ops, Op{Operation: OpEqual, Tokens: copyTokens(refTokens[refAt : refAt+runLen])})
			result.Stats.Matches += runLen
			refAt += runLen
			hypAt += runLen
		case diffmatchpatch.DiffDelete:
			result.Ops = append(result.Ops, Op{Operation: OpDelete, Tokens: copyTokens(refTokens[refAt : refAt+runLen])})
			result.Stats.Deletions += runLen
			refAt += runLen
		case diffmatchpatch.DiffInsert:
			result.Ops = append(result.Ops, Op{Operation: OpInsert, Tokens: copyTokens(hypTokens[hypAt : hypAt+runLen])})
			result.Stats.Insertions += runLen
			hypAt += runLen
		}
	}

	refCount := result.Stats.ReferenceTokens
	result.WER = clampRate(result.Stats.Deletions+result.Stats.Insertions, refCount)
	result.CER = characterErrorRate(refTokens, hypTokens)
	result.Coverage = 1 - clampRate(result.Stats.Deletions, refCount)
	return result, nil
}

// encodeTokens dictionary-encodes both token slices into strings where every
// distinct token is a single rune, shared across the two sides so equal
// tokens compare equal.
func encodeTokens(refTokens, hypTokens []string) (string, string, error) {
	codes := make(map[string]rune, len(refTokens)+len(hypTokens))
	next := rune(1)

	encode := func(tokens []string) (string, error) {
		encoded := make([]rune, 0, len(tokens))
		for _, tok := range tokens {
			code, ok := codes[tok]
			if !ok {
				if next > maxVocabulary {
					return "", fmt.Errorf("%w (limit %d)", ErrTokenSpace, maxVocabulary)
				}
				code = next
				codes[tok] = code
				next++
			}
			encoded = append(encoded, code)
		}
		return string(encoded), nil
	}

	encRef, err := encode(refTokens)
	if err != nil {
		return "", "", err
	}
	encHyp, err := encode(hypTokens)
	if err != nil {
		return "", "", err
	}
	return encRef, encHyp, nil
}

// characterErrorRate runs a direct character diff over the joined normalized
// forms of both sides.
func characterErrorRate(refTokens, hypTokens []string) float64 {
	refText := joinTokens(refTokens)
	hypText := joinTokens(hypTokens)
	if refText == hypText {
		return 0
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(refText, hypText, false)

	errorChars := 0
	for _, d := range diffs {
		if d.Type != diffmatchpatch.DiffEqual {
			errorChars += len([]rune(d.Text))
		}
	}
	return clampRate(errorChars, len([]rune(refText)))
}

func joinTokens(tokens []string) string {
	return strings.Join(tokens, " ")
}

func copyTokens(tokens []string) []string {
	out := make([]string, len(tokens))
	copy(out, tokens)
	return out
}

// clampRate divides count by a floor-1 denominator and caps the result at 1.
func clampRate(count, denom int) float64 {
	if denom < 1 {
		denom = 1
	}
	rate := float64(count) / float64(denom)
	if rate > 1 {
		return 1
	}
	return rate
}
