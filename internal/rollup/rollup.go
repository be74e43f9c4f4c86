// Package rollup aggregates word-level alignment operations into sentence
// and paragraph alignment records with error-rate metrics, timing, and a
// status classification, and assembles the TranscriptIndex artifact.
package rollup

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"bookalign/internal/aligner"
	"bookalign/internal/book"
	"bookalign/internal/diff"
	"bookalign/internal/textnorm"
)

// Status classifies how trustworthy an aligned region is.
type Status string

const (
	// StatusOK marks regions safe to use without review.
	StatusOK Status = "ok"
	// StatusAttention marks regions worth a human look.
	StatusAttention Status = "attention"
	// StatusUnreliable marks regions whose alignment cannot be trusted.
	StatusUnreliable Status = "unreliable"
)

// Sentence status thresholds.
const (
	okWER         = 0.10
	attentionWER  = 0.25
	okMissingRuns = 3
)

// Range is a half-open index range.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Timing is a start/end pair in seconds derived from transcript token
// timestamps. The zero value means no transcript range resolved.
type Timing struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Metrics are the per-region error rates. WER is relative to the book
// reference; SpanWER is relative to the longer of the two sides so it stays
// in [0,1] even for over-long hypotheses.
type Metrics struct {
	WER         float64 `json:"wer"`
	CER         float64 `json:"cer"`
	SpanWER     float64 `json:"spanWer"`
	Coverage    float64 `json:"coverage"`
	MissingRuns int     `json:"missingRuns"`
	ExtraRuns   int     `json:"extraRuns"`
}

// SentenceAlign is the alignment record for one book sentence.
type SentenceAlign struct {
	ID      int     `json:"id"`
	Book    Range   `json:"book"`
	ASR     *Range  `json:"asr,omitempty"`
	Timing  Timing  `json:"timing"`
	Metrics Metrics `json:"metrics"`
	Status  Status  `json:"status"`
}

// ParagraphAlign is the alignment record for one book paragraph.
type ParagraphAlign struct {
	ID          int     `json:"id"`
	Book        Range   `json:"book"`
	ASR         *Range  `json:"asr,omitempty"`
	Timing      Timing  `json:"timing"`
	Metrics     Metrics `json:"metrics"`
	Status      Status  `json:"status"`
	SentenceIDs []int   `json:"sentenceIds"`
}

// Provenance carries the artifact header fields recorded alongside the
// alignment collections.
type Provenance struct {
	AudioPath            string    `json:"audioPath"`
	ScriptPath           string    `json:"scriptPath"`
	BookIndexPath        string    `json:"bookIndexPath"`
	CreatedAt            time.Time `json:"createdAt"`
	NormalizationVersion string    `json:"normalizationVersion"`
}

// TranscriptIndex is the root alignment artifact: provenance plus the three
// ordered collections.
type TranscriptIndex struct {
	Provenance
	Words      []aligner.WordAlign `json:"words"`
	Sentences  []SentenceAlign     `json:"sentences"`
	Paragraphs []ParagraphAlign    `json:"paragraphs"`
}

// BuildTranscriptIndex assembles the root artifact. The caller supplies
// provenance (including the creation timestamp) so the aggregation itself
// stays deterministic.
func BuildTranscriptIndex(prov Provenance, words []aligner.WordAlign, sentences []SentenceAlign, paragraphs []ParagraphAlign) TranscriptIndex {
	if prov.NormalizationVersion == "" {
		prov.NormalizationVersion = textnorm.NormalizationVersion
	}
	return TranscriptIndex{
		Provenance: prov,
		Words:      words,
		Sentences:  sentences,
		Paragraphs: paragraphs,
	}
}

// Roller aggregates word alignments into sentence and paragraph records.
type Roller struct {
	logger *zap.Logger
}

// NewRoller creates a Roller.
func NewRoller() *Roller {
	return NewRollerWithLogger(nil)
}

// NewRollerWithLogger creates a Roller with the given logger.
func NewRollerWithLogger(logger *zap.Logger) *Roller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roller{logger: logger}
}

// Rollup groups the word alignment records by the sentence and paragraph
// spans of the book (spans are in original book word coordinates; records
// are in filtered coordinates, translated through the views), derives each
// region's transcript range and timing, and computes its metrics and
// status. Degenerate regions (no records, no resolvable transcript range)
// produce records with nil ASR range and zero timing, never errors.
func (r *Roller) Rollup(words []aligner.WordAlign, bookView, asrView textnorm.FilteredView, sentences, paragraphs []book.Span, asrTokens []book.TranscriptToken) ([]SentenceAlign, []ParagraphAlign, error) {
	for i, w := range words {
		if err := w.Validate(); err != nil {
			return nil, nil, fmt.Errorf("word align %d: %w", i, err)
		}
		if w.BookIdx != nil && (*w.BookIdx < 0 || *w.BookIdx >= bookView.Len()) {
			return nil, nil, fmt.Errorf("word align %d: book index %d outside filtered view of %d", i, *w.BookIdx, bookView.Len())
		}
		if w.ASRIdx != nil && (*w.ASRIdx < 0 || *w.ASRIdx >= asrView.Len()) {
			return nil, nil, fmt.Errorf("word align %d: asr index %d outside filtered view of %d", i, *w.ASRIdx, asrView.Len())
		}
	}

	sentenceAligns := make([]SentenceAlign, 0, len(sentences))
	for _, span := range sentences {
		region, err := r.region(words, bookView, asrView, asrTokens, span)
		if err != nil {
			return nil, nil, fmt.Errorf("sentence %d: %w", span.ID, err)
		}
		sentenceAligns = append(sentenceAligns, SentenceAlign{
			ID:      span.ID,
			Book:    Range{Start: span.Start, End: span.End},
			ASR:     region.asr,
			Timing:  region.timing,
			Metrics: region.metrics,
			Status:  sentenceStatus(region.metrics),
		})
	}

	paragraphAligns := make([]ParagraphAlign, 0, len(paragraphs))
	for _, span := range paragraphs {
		region, err := r.region(words, bookView, asrView, asrTokens, span)
		if err != nil {
			return nil, nil, fmt.Errorf("paragraph %d: %w", span.ID, err)
		}
		paragraphAligns = append(paragraphAligns, ParagraphAlign{
			ID:          span.ID,
			Book:        Range{Start: span.Start, End: span.End},
			ASR:         region.asr,
			Timing:      region.timing,
			Metrics:     region.metrics,
			Status:      paragraphStatus(region.metrics),
			SentenceIDs: sentenceIDsWithin(sentences, span),
		})
	}

	r.logger.Info("rollup complete",
		zap.Int("sentences", len(sentenceAligns)),
		zap.Int("paragraphs", len(paragraphAligns)))
	return sentenceAligns, paragraphAligns, nil
}

type regionResult struct {
	asr     *Range
	timing  Timing
	metrics Metrics
}

// region collects the records whose book index maps inside the span, derives
// the transcript range as [min asrIdx, max asrIdx] over paired records
// (reported in original transcript token coordinates), and computes the
// metrics from a token diff of the two normalized texts.
func (r *Roller) region(words []aligner.WordAlign, bookView, asrView textnorm.FilteredView, asrTokens []book.TranscriptToken, span book.Span) (regionResult, error) {
	minASR, maxASR := -1, -1
	var bookText []string
	for _, w := range words {
		if w.BookIdx == nil {
			continue
		}
		orig := bookView.OriginalIndex(*w.BookIdx)
		if orig < span.Start || orig >= span.End {
			continue
		}
		bookText = append(bookText, bookView.Tokens[*w.BookIdx])
		if w.ASRIdx == nil {
			continue
		}
		if minASR == -1 || *w.ASRIdx < minASR {
			minASR = *w.ASRIdx
		}
		if *w.ASRIdx > maxASR {
			maxASR = *w.ASRIdx
		}
	}

	result := regionResult{}
	var asrText []string
	if minASR >= 0 {
		asrText = asrView.Tokens[minASR : maxASR+1]

		origStart := asrView.OriginalIndex(minASR)
		origEnd := asrView.OriginalIndex(maxASR) + 1
		if origEnd > len(asrTokens) {
			return result, fmt.Errorf("asr range [%d,%d) outside transcript of %d tokens", origStart, origEnd, len(asrTokens))
		}
		result.asr = &Range{Start: origStart, End: origEnd}
		result.timing = Timing{
			Start: asrTokens[origStart].Start,
			End:   asrTokens[origEnd-1].End(),
		}
	}

	d, err := diff.AnalyzeTokens(bookText, asrText)
	if err != nil {
		return result, fmt.Errorf("token diff: %w", err)
	}
	result.metrics = metricsFromDiff(d)
	return result, nil
}

// metricsFromDiff folds a diff result into region metrics. Missing and extra
// runs are the counts of contiguous delete and insert runs in the token diff.
func metricsFromDiff(d diff.Result) Metrics {
	missing, extra := 0, 0
	for _, op := range d.Ops {
		switch op.Operation {
		case diff.OpDelete:
			missing++
		case diff.OpInsert:
			extra++
		}
	}
	errors := d.Stats.Deletions + d.Stats.Insertions
	span := d.Stats.ReferenceTokens
	if d.Stats.HypothesisTokens > span {
		span = d.Stats.HypothesisTokens
	}
	spanWER := 0.0
	if span > 0 {
		spanWER = float64(errors) / float64(span)
		if spanWER > 1 {
			spanWER = 1
		}
	}
	return Metrics{
		WER:         d.WER,
		CER:         d.CER,
		SpanWER:     spanWER,
		Coverage:    d.Coverage,
		MissingRuns: missing,
		ExtraRuns:   extra,
	}
}

func sentenceStatus(m Metrics) Status {
	switch {
	case m.WER <= okWER && m.MissingRuns < okMissingRuns:
		return StatusOK
	case m.WER <= attentionWER:
		return StatusAttention
	default:
		return StatusUnreliable
	}
}

func paragraphStatus(m Metrics) Status {
	switch {
	case m.WER <= okWER:
		return StatusOK
	case m.WER <= attentionWER:
		return StatusAttention
	default:
		return StatusUnreliable
	}
}

func sentenceIDsWithin(sentences []book.Span, paragraph book.Span) []int {
	var ids []int
	for _, s := range sentences {
		if s.Start >= paragraph.Start && s.End <= paragraph.End {
			ids = append(ids, s.ID)
		}
	}
	return ids
}
