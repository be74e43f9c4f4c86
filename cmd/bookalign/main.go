package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"bookalign/internal/app"
	"bookalign/internal/config"
)

// main is the application entry point
func main() {
	var (
		bookFlag       = flag.String("book", "", "Path to the book index JSON file")
		transcriptFlag = flag.String("transcript", "", "Path to the transcript JSON file")
		outFlag        = flag.String("out", "", "Output directory for alignment artifacts")
		configFlag     = flag.String("config", "", "Path to a YAML config file")
		helpFlag       = flag.Bool("help", false, "Show help message")
		versionFlag    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}

	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	if *bookFlag == "" || *transcriptFlag == "" {
		fmt.Fprintln(os.Stderr, "Error: -book and -transcript are required")
		printHelp()
		os.Exit(2)
	}

	if err := runApplication(*bookFlag, *transcriptFlag, *configFlag, *outFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// runApplication contains the core application logic that can be tested
func runApplication(bookIndexPath, transcriptPath, configPath, outDir string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("bookalign starting up",
		zap.String("component", "main"),
		zap.String("version", version))

	application, err := newApplication(bookIndexPath, transcriptPath, configPath, outDir, logger)
	if err != nil {
		logger.Error("Failed to create application",
			zap.Error(err),
			zap.String("component", "main"))
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Cancel the pipeline between stages on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
			zap.String("component", "main"))
		cancel()
	}()

	if err := application.Run(ctx); err != nil {
		logger.Error("Alignment run failed",
			zap.Error(err),
			zap.String("component", "main"))
		return fmt.Errorf("alignment run failed: %w", err)
	}

	if err := application.Shutdown(); err != nil {
		return fmt.Errorf("application shutdown error: %w", err)
	}

	logger.Info("bookalign finished successfully",
		zap.String("component", "main"))
	return nil
}

// newApplication builds the application from the flag-level settings. The
// -config flag wins over CONFIG_PATH and ALIGN_* env; -out wins over both.
func newApplication(bookIndexPath, transcriptPath, configPath, outDir string, logger *zap.Logger) (*app.Application, error) {
	if configPath == "" && outDir == "" {
		return app.NewApplication(bookIndexPath, transcriptPath)
	}

	var cfg *config.Configuration
	var err error
	if configPath != "" {
		cfg, err = config.NewConfigurationFromFile(configPath)
	} else {
		cfg, err = config.NewConfigurationFromEnv()
	}
	if err != nil {
		return nil, err
	}
	if outDir != "" {
		cfg.SetOutputDir(outDir)
	}
	return app.NewApplicationWithConfig(cfg, bookIndexPath, transcriptPath, logger), nil
}

const version = "1.2"

// printHelp displays command line usage information
func printHelp() {
	fmt.Println("bookalign - Manuscript to Audiobook Transcript Alignment")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("    bookalign -book <index.json> -transcript <transcript.json>")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("    -book         Path to the book index JSON file (required)")
	fmt.Println("    -transcript   Path to the transcript JSON file (required)")
	fmt.Println("    -out          Output directory for artifacts (default: config output.dir)")
	fmt.Println("    -config       Path to a YAML config file")
	fmt.Println("    -help         Show this help message")
	fmt.Println("    -version      Show version information")
	fmt.Println()
	fmt.Println("CONFIGURATION:")
	fmt.Println("    Without -config, policy knobs are read from the file named by")
	fmt.Println("    CONFIG_PATH, or from ALIGN_* environment variables when unset.")
	fmt.Println()
	fmt.Println("OUTPUT:")
	fmt.Println("    <stem>.anchors.json          anchors and windows")
	fmt.Println("    <stem>.index.json            word/sentence/paragraph alignment")
	fmt.Println("    <stem>.validate.report.txt   human-readable validation report")
}

// printVersion displays version information
func printVersion() {
	fmt.Println("bookalign")
	fmt.Println("Version: " + version)
	fmt.Println("Anchor-based manuscript/transcript alignment engine")
}
