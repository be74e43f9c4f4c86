// Package report renders the plain-text validation report for one aligned
// chapter. The layout is fixed: the validation viewer tooling parses these
// exact header labels, summary lines, and item fields, so format changes
// here must stay in lockstep with it.
package report

import (
	"fmt"
	"sort"
	"strings"

	"bookalign/internal/book"
	"bookalign/internal/rollup"
)

// Render produces the full report text for a TranscriptIndex. bookIndex and
// transcript supply the literal words for hydrating sentence and paragraph
// ranges back into readable text; either may be nil, which leaves the text
// lines out.
func Render(index rollup.TranscriptIndex, bookIndex *book.Index, transcript *book.Transcript) string {
	var b strings.Builder

	b.WriteString("Validation Report\n")
	fmt.Fprintf(&b, "Audio     : %s\n", index.AudioPath)
	fmt.Fprintf(&b, "Script    : %s\n", index.ScriptPath)
	fmt.Fprintf(&b, "Book Index: %s\n", index.BookIndexPath)
	fmt.Fprintf(&b, "Created   : %s\n", index.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Sentences : %d (Avg WER %.2f%%, Max WER %.2f%%, Flagged %d)\n",
		len(index.Sentences), avgSentenceWER(index.Sentences)*100, maxSentenceWER(index.Sentences)*100, flaggedCount(index.Sentences))
	fmt.Fprintf(&b, "Paragraphs: %d (Avg WER %.2f%%, Avg Coverage %.2f%%)\n",
		len(index.Paragraphs), avgParagraphWER(index.Paragraphs)*100, avgCoverage(index.Paragraphs)*100)

	b.WriteString("\nAll sentences by WER:\n")
	for _, s := range sentencesByWER(index.Sentences) {
		fmt.Fprintf(&b, "  #%d | WER %.1f%% | CER %.1f%% | Status %s\n",
			s.ID, s.Metrics.WER*100, s.Metrics.CER*100, s.Status)
		fmt.Fprintf(&b, "      Book range: [%d, %d)\n", s.Book.Start, s.Book.End)
		if s.ASR != nil {
			fmt.Fprintf(&b, "      Script range: [%d, %d)\n", s.ASR.Start, s.ASR.End)
			fmt.Fprintf(&b, "      Timing: %.3fs → %.3fs (Δ %.3fs)\n",
				s.Timing.Start, s.Timing.End, s.Timing.End-s.Timing.Start)
		} else {
			b.WriteString("      Script range: none\n")
		}
		if bookIndex != nil {
			fmt.Fprintf(&b, "      Book   : %s\n", bookText(bookIndex, s.Book))
		}
		if transcript != nil && s.ASR != nil {
			fmt.Fprintf(&b, "      Script : %s\n", scriptText(transcript, *s.ASR))
		}
	}

	b.WriteString("\nAll paragraphs by WER:\n")
	for _, p := range paragraphsByWER(index.Paragraphs) {
		fmt.Fprintf(&b, "  #%d | WER %.1f%% | Coverage %.1f%% | Status %s\n",
			p.ID, p.Metrics.WER*100, p.Metrics.Coverage*100, p.Status)
		fmt.Fprintf(&b, "      Book range: [%d, %d)\n", p.Book.Start, p.Book.End)
		if bookIndex != nil {
			fmt.Fprintf(&b, "      Book   : %s\n", bookText(bookIndex, p.Book))
		}
	}

	return b.String()
}

// bookText hydrates a book word range back to literal text.
func bookText(idx *book.Index, r rollup.Range) string {
	words := make([]string, 0, r.End-r.Start)
	for i := r.Start; i < r.End && i < len(idx.Words); i++ {
		words = append(words, idx.Words[i].Text)
	}
	return strings.Join(words, " ")
}

// scriptText hydrates a transcript token range back to literal text.
func scriptText(tr *book.Transcript, r rollup.Range) string {
	words := make([]string, 0, r.End-r.Start)
	for i := r.Start; i < r.End && i < len(tr.Tokens); i++ {
		words = append(words, tr.Tokens[i].Word)
	}
	return strings.Join(words, " ")
}

// sentencesByWER returns the sentences sorted by WER descending, ties by id.
func sentencesByWER(sentences []rollup.SentenceAlign) []rollup.SentenceAlign {
	sorted := make([]rollup.SentenceAlign, len(sentences))
	copy(sorted, sentences)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Metrics.WER > sorted[j].Metrics.WER
	})
	return sorted
}

func paragraphsByWER(paragraphs []rollup.ParagraphAlign) []rollup.ParagraphAlign {
	sorted := make([]rollup.ParagraphAlign, len(paragraphs))
	copy(sorted, paragraphs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Metrics.WER > sorted[j].Metrics.WER
	})
	return sorted
}

func avgSentenceWER(sentences []rollup.SentenceAlign) float64 {
	if len(sentences) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range sentences {
		sum += s.Metrics.WER
	}
	return sum / float64(len(sentences))
}

func maxSentenceWER(sentences []rollup.SentenceAlign) float64 {
	maxWER := 0.0
	for _, s := range sentences {
		if s.Metrics.WER > maxWER {
			maxWER = s.Metrics.WER
		}
	}
	return maxWER
}

func flaggedCount(sentences []rollup.SentenceAlign) int {
	count := 0
	for _, s := range sentences {
		if s.Status != rollup.StatusOK {
			count++
		}
	}
	return count
}

func avgParagraphWER(paragraphs []rollup.ParagraphAlign) float64 {
	if len(paragraphs) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range paragraphs {
		sum += p.Metrics.WER
	}
	return sum / float64(len(paragraphs))
}

func avgCoverage(paragraphs []rollup.ParagraphAlign) float64 {
	if len(paragraphs) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range paragraphs {
		sum += p.Metrics.Coverage
	}
	return sum / float64(len(paragraphs))
}
