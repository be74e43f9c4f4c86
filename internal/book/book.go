// Package book defines the two input artifacts the alignment engine consumes:
// the book index produced by the manuscript parser and the transcript token
// list produced by the ASR service. Both arrive as JSON files; the loaders
// here are the only file I/O in the repository outside the app orchestrator.
package book

import (
	"encoding/json"
	"fmt"
	"os"
)

// Word is a single manuscript word with its position metadata.
type Word struct {
	Text         string `json:"text"`
	Idx          int    `json:"idx"`
	SentenceIdx  int    `json:"sentenceIdx"`
	ParagraphIdx int    `json:"paragraphIdx"`
}

// Section is an optional named sub-range of the book, half-open over word
// indices. Sections let a caller scope anchor discovery to one chapter.
type Section struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Index is the ordered word array for one book or chapter.
type Index struct {
	SourcePath string    `json:"sourcePath,omitempty"`
	Words      []Word    `json:"words"`
	Sections   []Section `json:"sections,omitempty"`
}

// Validate checks the structural invariants the alignment engine relies on:
// Idx matches slice position and sentence/paragraph indices never decrease.
func (idx *Index) Validate() error {
	for i, w := range idx.Words {
		if w.Idx != i {
			return fmt.Errorf("word %d has idx %d, expected %d", i, w.Idx, i)
		}
		if i > 0 {
			prev := idx.Words[i-1]
			if w.SentenceIdx < prev.SentenceIdx {
				return fmt.Errorf("word %d sentence index decreases (%d -> %d)", i, prev.SentenceIdx, w.SentenceIdx)
			}
			if w.ParagraphIdx < prev.ParagraphIdx {
				return fmt.Errorf("word %d paragraph index decreases (%d -> %d)", i, prev.ParagraphIdx, w.ParagraphIdx)
			}
		}
	}
	for _, s := range idx.Sections {
		if s.Start < 0 || s.End > len(idx.Words) || s.Start > s.End {
			return fmt.Errorf("section %q range [%d,%d) out of bounds for %d words", s.Name, s.Start, s.End, len(idx.Words))
		}
	}
	return nil
}

// WordTexts returns the raw word strings in order.
func (idx *Index) WordTexts() []string {
	texts := make([]string, len(idx.Words))
	for i, w := range idx.Words {
		texts[i] = w.Text
	}
	return texts
}

// Span is a half-open range of original word indices labeled with the
// sentence or paragraph id it covers.
type Span struct {
	ID    int `json:"id"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// SentenceRanges groups consecutive words by sentence index.
func (idx *Index) SentenceRanges() []Span {
	return idx.ranges(func(w Word) int { return w.SentenceIdx })
}

// ParagraphRanges groups consecutive words by paragraph index.
func (idx *Index) ParagraphRanges() []Span {
	return idx.ranges(func(w Word) int { return w.ParagraphIdx })
}

func (idx *Index) ranges(key func(Word) int) []Span {
	var spans []Span
	for i, w := range idx.Words {
		id := key(w)
		if len(spans) == 0 || spans[len(spans)-1].ID != id {
			spans = append(spans, Span{ID: id, Start: i, End: i + 1})
			continue
		}
		spans[len(spans)-1].End = i + 1
	}
	return spans
}

// TranscriptToken is one ASR word with its timing, using the ASR service
// wire field names: w = word, t = start seconds, d = duration seconds.
type TranscriptToken struct {
	Word     string  `json:"w"`
	Start    float64 `json:"t"`
	Duration float64 `json:"d"`
}

// End returns the token end time in seconds.
func (t TranscriptToken) End() float64 {
	return t.Start + t.Duration
}

// Validate checks if the TranscriptToken has valid values.
func (t TranscriptToken) Validate() error {
	if t.Word == "" {
		return fmt.Errorf("word cannot be empty")
	}
	if t.Start < 0 {
		return fmt.Errorf("start cannot be negative")
	}
	if t.Duration < 0 {
		return fmt.Errorf("duration cannot be negative")
	}
	return nil
}

// Transcript is the ordered ASR token array for one audio file.
type Transcript struct {
	AudioPath string            `json:"audioPath,omitempty"`
	Tokens    []TranscriptToken `json:"tokens"`
}

// Validate checks every token and that start times never decrease.
func (tr *Transcript) Validate() error {
	for i, tok := range tr.Tokens {
		if err := tok.Validate(); err != nil {
			return fmt.Errorf("token %d: %w", i, err)
		}
		if i > 0 && tok.Start < tr.Tokens[i-1].Start {
			return fmt.Errorf("token %d start time decreases (%.3f -> %.3f)", i, tr.Tokens[i-1].Start, tok.Start)
		}
	}
	return nil
}

// WordTexts returns the raw ASR word strings in order.
func (tr *Transcript) WordTexts() []string {
	texts := make([]string, len(tr.Tokens))
	for i, tok := range tr.Tokens {
		texts[i] = tok.Word
	}
	return texts
}

// LoadIndex reads and validates a book index JSON file.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read book index %s: %w", path, err)
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse book index %s: %w", path, err)
	}
	if err := idx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid book index %s: %w", path, err)
	}
	if idx.SourcePath == "" {
		idx.SourcePath = path
	}
	return &idx, nil
}

// LoadTranscript reads and validates a transcript JSON file.
func LoadTranscript(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript %s: %w", path, err)
	}
	var tr Transcript
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse transcript %s: %w", path, err)
	}
	if err := tr.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transcript %s: %w", path, err)
	}
	return &tr, nil
}
