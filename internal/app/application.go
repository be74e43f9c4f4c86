// Package app wires the alignment stages into the end-to-end pipeline: load
// the book index and transcript, build filtered views, discover anchors,
// partition windows, align, roll up, and persist the artifacts. All file
// I/O in the pipeline lives here; the stage packages are pure.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"bookalign/internal/aligner"
	"bookalign/internal/anchor"
	"bookalign/internal/book"
	"bookalign/internal/config"
	"bookalign/internal/logger"
	"bookalign/internal/report"
	"bookalign/internal/rollup"
	"bookalign/internal/textnorm"
	"bookalign/internal/window"
)

// AnchorDocument is the diagnostic artifact persisted as *.anchors.json:
// the selected anchors plus the windows they induce.
type AnchorDocument struct {
	Anchors []anchor.Anchor `json:"anchors"`
	Windows []window.Window `json:"windows"`
}

// Application represents the alignment pipeline orchestrator
type Application struct {
	config    *config.Configuration
	zapLogger *zap.Logger
	selector  *anchor.Selector
	aligner   *aligner.Aligner
	roller    *rollup.Roller

	bookIndexPath  string
	transcriptPath string
}

// NewApplication creates an application instance with all components
// initialized. Configuration is loaded from the file named by CONFIG_PATH
// when set, otherwise from ALIGN_* environment variables.
func NewApplication(bookIndexPath, transcriptPath string) (*Application, error) {
	var cfg *config.Configuration
	var err error

	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		cfg, err = config.NewConfigurationFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.NewConfigurationFromEnv()
		if err != nil {
			return nil, fmt.Errorf("failed to load config from environment: %w", err)
		}
	}

	return NewApplicationWithConfig(cfg, bookIndexPath, transcriptPath, logger.NewLogger()), nil
}

// NewApplicationWithConfig creates an application instance from explicit
// configuration and logger; tests use this to avoid ambient state.
func NewApplicationWithConfig(cfg *config.Configuration, bookIndexPath, transcriptPath string, zapLogger *zap.Logger) *Application {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	return &Application{
		config:         cfg,
		zapLogger:      zapLogger,
		selector:       anchor.NewSelectorWithLogger(cfg.AnchorPolicy(), zapLogger),
		aligner:        aligner.NewAlignerWithLogger(cfg.AlignerOptions(), zapLogger),
		roller:         rollup.NewRollerWithLogger(zapLogger),
		bookIndexPath:  bookIndexPath,
		transcriptPath: transcriptPath,
	}
}

// Run executes the full alignment pipeline and writes the three artifacts
// (anchors document, transcript index, validation report) into the
// configured output directory. Cancellation is honored between stages.
func (app *Application) Run(ctx context.Context) error {
	app.zapLogger.Info("starting alignment pipeline",
		zap.String("bookIndex", app.bookIndexPath),
		zap.String("transcript", app.transcriptPath))

	bookIndex, err := book.LoadIndex(app.bookIndexPath)
	if err != nil {
		return err
	}
	transcript, err := book.LoadTranscript(app.transcriptPath)
	if err != nil {
		return err
	}

	index, doc, err := app.Align(ctx, bookIndex, transcript)
	if err != nil {
		return err
	}

	stem := strings.TrimSuffix(filepath.Base(app.transcriptPath), filepath.Ext(app.transcriptPath))
	outDir := app.config.GetOutputDir()

	if err := writeJSON(filepath.Join(outDir, stem+".anchors.json"), doc); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(outDir, stem+".index.json"), index); err != nil {
		return err
	}
	reportPath := filepath.Join(outDir, stem+".validate.report.txt")
	if err := os.WriteFile(reportPath, []byte(report.Render(index, bookIndex, transcript)), 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", reportPath, err)
	}

	app.zapLogger.Info("alignment pipeline complete",
		zap.String("outputDir", outDir),
		zap.Int("words", len(index.Words)),
		zap.Int("sentences", len(index.Sentences)),
		zap.Int("paragraphs", len(index.Paragraphs)))
	return nil
}

// Align runs the in-memory pipeline over already-loaded inputs and returns
// the transcript index plus the anchors document.
func (app *Application) Align(ctx context.Context, bookIndex *book.Index, transcript *book.Transcript) (rollup.TranscriptIndex, AnchorDocument, error) {
	var index rollup.TranscriptIndex
	var doc AnchorDocument

	bookView := textnorm.BuildView(bookIndex.WordTexts())
	asrView := textnorm.BuildView(transcript.WordTexts())
	app.zapLogger.Info("filtered views built",
		zap.Int("bookTokens", bookView.Len()),
		zap.Int("asrTokens", asrView.Len()))

	sentenceOf := func(pos int) int {
		return bookIndex.Words[bookView.OriginalIndex(pos)].SentenceIdx
	}

	if err := ctx.Err(); err != nil {
		return index, doc, err
	}
	anchors := app.selector.SelectAnchors(bookView.Tokens, sentenceOf, asrView.Tokens)

	windows, err := window.Build(anchors, 0, bookView.Len(), 0, asrView.Len())
	if err != nil {
		return index, doc, fmt.Errorf("window build: %w", err)
	}
	doc = AnchorDocument{Anchors: anchors, Windows: windows}

	words, err := app.aligner.Align(ctx, bookView.Tokens, asrView.Tokens, anchors, windows)
	if err != nil {
		return index, doc, err
	}

	if err := ctx.Err(); err != nil {
		return index, doc, err
	}
	sentences, paragraphs, err := app.roller.Rollup(words, bookView, asrView,
		bookIndex.SentenceRanges(), bookIndex.ParagraphRanges(), transcript.Tokens)
	if err != nil {
		return index, doc, fmt.Errorf("rollup: %w", err)
	}

	index = rollup.BuildTranscriptIndex(rollup.Provenance{
		AudioPath:            transcript.AudioPath,
		ScriptPath:           app.transcriptPath,
		BookIndexPath:        app.bookIndexPath,
		CreatedAt:            time.Now().UTC(),
		NormalizationVersion: textnorm.NormalizationVersion,
	}, words, sentences, paragraphs)
	return index, doc, nil
}

// Shutdown flushes buffered log entries.
func (app *Application) Shutdown() error {
	// Sync can fail on stderr sinks; that is not actionable here.
	_ = app.zapLogger.Sync()
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
