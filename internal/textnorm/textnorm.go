package textnorm

import (
	"regexp"
	"strings"
)

// NormalizationVersion identifies the normalization rules applied to every
// token before matching. It is recorded in alignment artifacts so that a
// stale artifact produced under different rules can be detected and rebuilt.
const NormalizationVersion = "norm-v2"

// Pre-compiled regexes for performance
var (
	nonAlnumRegex = regexp.MustCompile(`[^a-z0-9]+`)
	alnumRegex    = regexp.MustCompile(`[a-z0-9]`)
)

// typographicReplacer maps typographic punctuation to plain ASCII before
// stripping, so curly apostrophes and em-dashes do not survive as token
// content that the ASCII regexes would miss.
var typographicReplacer = strings.NewReplacer(
	"’", "'", // right single quote
	"‘", "'", // left single quote
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"–", "-", // en dash
	"—", "-", // em dash
	"…", "", // ellipsis
)

// Normalize produces the canonical matching form of a single word: case-fold,
// fold typographic punctuation to ASCII, drop apostrophes so contractions
// compare equal to their ASR renderings ("don’t" -> "dont"), then strip every
// remaining character that is not a letter or digit. Returns the empty string
// for tokens with no letter/digit content (pure punctuation).
func Normalize(word string) string {
	w := strings.ToLower(typographicReplacer.Replace(word))
	w = strings.ReplaceAll(w, "'", "")
	w = nonAlnumRegex.ReplaceAllString(w, "")
	if !alnumRegex.MatchString(w) {
		return ""
	}
	return w
}

// FilteredView is a normalized token array with a map back to the original
// token positions. Tokens that normalize to nothing (pure punctuation) are
// excluded; FilteredToOriginal[i] is the index the i-th filtered token held
// in the input slice.
type FilteredView struct {
	Tokens             []string `json:"tokens"`
	FilteredToOriginal []int    `json:"filteredToOriginal"`
}

// Len returns the number of filtered tokens.
func (v FilteredView) Len() int {
	return len(v.Tokens)
}

// OriginalIndex maps a filtered position back to the original token index.
// Panics on out-of-range positions, matching slice semantics.
func (v FilteredView) OriginalIndex(filtered int) int {
	return v.FilteredToOriginal[filtered]
}

// BuildView normalizes and filters a raw word list into a FilteredView.
// An empty or nil input yields an empty view, not an error.
func BuildView(words []string) FilteredView {
	view := FilteredView{
		Tokens:             make([]string, 0, len(words)),
		FilteredToOriginal: make([]int, 0, len(words)),
	}
	for i, word := range words {
		norm := Normalize(word)
		if norm == "" {
			continue
		}
		view.Tokens = append(view.Tokens, norm)
		view.FilteredToOriginal = append(view.FilteredToOriginal, i)
	}
	return view
}

// Tokenize splits free text on whitespace and normalizes each piece,
// dropping pieces with no token content. It applies the same rules as
// BuildView so diff results agree with alignment results.
func Tokenize(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if norm := Normalize(f); norm != "" {
			tokens = append(tokens, norm)
		}
	}
	return tokens
}

// NormalizeText produces the canonical character-level form of free text:
// every token normalized and re-joined with single spaces. Character error
// rates are computed over this form on both sides.
func NormalizeText(text string) string {
	return strings.Join(Tokenize(text), " ")
}
