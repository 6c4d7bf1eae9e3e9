package main

import (
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/book-expert/pdf-to-image/internal/pdfrender"
)

// flags represents the command-line arguments.
type flags struct {
	inputFolders []string
	configPath   string
	format       string
	engine       string
	outputPath   string
	logDir       string
	natsURL      string
	natsSubject  string
	natsStream   string
	dpi          int
	workers      int
	symlinks     bool
	verbose      bool
	progress     bool
	skipBlank    bool
	help         bool
}

// newFlagSet defines every flag on a fresh FlagSet bound to flgs.
func newFlagSet(flgs *flags, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("pdf-to-image", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.SortFlags = false

	formatsHelp := fmt.Sprintf(
		"set image type (%s)",
		strings.Join(pdfrender.SupportedImageFormats(), "|"),
	)

	fs.BoolVarP(&flgs.help, "help", "h", false, "produce this message")
	fs.BoolVarP(&flgs.symlinks, "symlinks", "s", false, "follow symlinks if set")
	fs.BoolVarP(&flgs.verbose, "verbose", "v", false, "display progress messages")
	fs.StringVarP(&flgs.format, "type", "t", "jpg", formatsHelp)
	fs.IntVarP(&flgs.dpi, "dpi", "D", 200, "set image DPI")
	fs.StringVarP(&flgs.outputPath, "dest", "d", ".", "destination folder")
	fs.IntVarP(&flgs.workers, "workers", "w", 0, "maximum concurrent page conversions (0 = CPU count)")
	fs.StringVarP(&flgs.engine, "engine", "e", pdfrender.EngineFitz, "render engine (fitz|ghostscript)")
	fs.StringVarP(&flgs.configPath, "config", "c", "", "TOML config file")
	fs.BoolVarP(&flgs.progress, "progress", "p", false, "show a progress bar on stderr")
	fs.BoolVar(&flgs.skipBlank, "skip-blank", false, "do not write pages detected as blank")
	fs.StringVar(&flgs.logDir, "log-dir", "", "directory for log files")
	fs.StringVar(&flgs.natsURL, "nats-url", "", "publish page events to this NATS server")
	fs.StringVar(&flgs.natsSubject, "nats-subject", "", "subject for page events")
	fs.StringVar(&flgs.natsStream, "nats-stream", "", "create this JetStream stream for the subject if missing")

	return fs
}

// parseFlags parses args (without the program name). Positional arguments
// are the input folders.
func parseFlags(args []string, output io.Writer) (flags, *flag.FlagSet, error) {
	var flgs flags

	fs := newFlagSet(&flgs, output)

	parseErr := fs.Parse(args)
	if parseErr != nil {
		return flgs, fs, fmt.Errorf("%w: %w", errConfig, parseErr)
	}

	flgs.inputFolders = fs.Args()

	return flgs, fs, nil
}

func printUsage(fs *flag.FlagSet, output io.Writer) {
	_, _ = fmt.Fprintf(output, "Usage: pdf-to-image [options] <input folder>...\n\nAllowed options:\n")
	_, _ = fmt.Fprint(output, fs.FlagUsages())
}
