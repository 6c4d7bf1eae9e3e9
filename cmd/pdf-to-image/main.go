// Command pdf-to-image scans folders for PDF files and writes every page of
// every document as an image into <dest>/<name>/<name> NNNN.<type>.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/book-expert/pdf-to-image/internal/notify"
	"github.com/book-expert/pdf-to-image/internal/pdfrender"
)

const (
	exitOK      = 0
	exitFailure = 1
)

// errHelpRequested is returned for -h/--help, which exits like a usage error.
var errHelpRequested = errors.New("help requested")

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)

	code := run(ctx, os.Args[1:], os.Stderr)

	stop()
	os.Exit(code)
}

// run executes one conversion and returns the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	runSettings, fs, err := buildSettings(args, stderr)
	if err != nil {
		if !errors.Is(err, errHelpRequested) {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		}

		printUsage(fs, stderr)

		return exitFailure
	}

	err = execute(ctx, &runSettings, runSettings.options.Verbose)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)

		return exitFailure
	}

	return exitOK
}

// buildSettings parses flags, loads the config file and validates the result.
// Every error it returns is a configuration error.
func buildSettings(args []string, stderr io.Writer) (settings, *flag.FlagSet, error) {
	flgs, fs, err := parseFlags(args, stderr)
	if err != nil {
		return settings{}, fs, err
	}

	if flgs.help {
		return settings{}, fs, errHelpRequested
	}

	if fs.Changed("dpi") && flgs.dpi < 1 {
		return settings{}, fs, fmt.Errorf("%w: %w: %d", errConfig, pdfrender.ErrInvalidDPI, flgs.dpi)
	}

	if fs.Changed("workers") && flgs.workers < 0 {
		return settings{}, fs, fmt.Errorf("%w: %w: %d", errConfig, pdfrender.ErrInvalidWorkers, flgs.workers)
	}

	cfg, err := loadConfig(flgs.configPath)
	if err != nil {
		return settings{}, fs, err
	}

	runSettings := mergeConfigAndFlags(&cfg, &flgs, fs)
	if flgs.progress {
		runSettings.options.ProgressBarOutput = os.Stderr
	}

	err = pdfrender.ValidateOptions(&runSettings.options)
	if err != nil {
		return settings{}, fs, fmt.Errorf("%w: %w", errConfig, err)
	}

	return runSettings, fs, nil
}

// execute sets up logging and publishing, then runs the processor.
func execute(ctx context.Context, runSettings *settings, verbose bool) error {
	setMaxProcs(verbose)

	log, err := setupLogger(runSettings.logDir)
	if err != nil {
		return fmt.Errorf("could not set up logger: %w", err)
	}

	defer func() {
		cerr := log.Close()
		if cerr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to close logger: %v\n", cerr)
		}
	}()

	if runSettings.nats.URL != "" {
		publisher, connErr := notify.Connect(ctx, runSettings.nats)
		if connErr != nil {
			return fmt.Errorf("could not set up page events: %w", connErr)
		}

		defer func() {
			cerr := publisher.Close()
			if cerr != nil {
				log.Warn("Failed to close NATS publisher: %v", cerr)
			}
		}()

		log.Info("Publishing page events on '%s' for workflow %s", runSettings.nats.Subject, publisher.WorkflowID())

		runSettings.options.Publisher = publisher
	}

	processor := pdfrender.NewProcessor(&runSettings.options, log)

	procErr := processor.Process(ctx)
	if procErr != nil {
		return fmt.Errorf("PDF processing failed: %w", procErr)
	}

	return nil
}

// setMaxProcs aligns GOMAXPROCS with container CPU quotas before the gate
// is sized from it.
func setMaxProcs(verbose bool) {
	logf := func(string, ...any) {}
	if verbose {
		logf = func(format string, args ...any) {
			_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}

	// maxprocs.Set only fails on an invalid GOMAXPROCS value, where the
	// runtime default still applies.
	_, _ = maxprocs.Set(maxprocs.Logger(logf))
}

// setupLogger initializes the logger, creating the log directory if needed.
func setupLogger(logDirConfig string) (*logger.Logger, error) {
	logDir := logDirConfig
	if logDir == "" {
		logDir = filepath.Join(os.TempDir(), "pdf-to-image")
	}

	logFileName := fmt.Sprintf("pdf-to-image_%s.log", time.Now().Format("20060102_150405"))

	log, err := logger.New(logDir, logFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}
