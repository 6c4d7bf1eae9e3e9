// Package pdfrender converts PDF pages into raster image files.
package pdfrender

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cheggaaa/pb/v3"
)

var (
	// ErrInputPathRequired is returned when no input folder is provided.
	ErrInputPathRequired = errors.New("at least one input folder is required")
	// ErrOutputNotDirectory is returned when the output path is not an existing directory.
	ErrOutputNotDirectory = errors.New("output path must be an existing directory")
	// ErrInvalidDPI is returned for a non-positive resolution.
	ErrInvalidDPI = errors.New("dpi must be a positive integer")
	// ErrInvalidWorkers is returned for a negative worker count.
	ErrInvalidWorkers = errors.New("workers must not be negative")
	// ErrUnknownEngine is returned for an engine name with no library.
	ErrUnknownEngine = errors.New("unknown render engine")
)

// Render engines.
const (
	EngineFitz        = "fitz"
	EngineGhostscript = "ghostscript"
)

// Logger is the diagnostic channel. *logger.Logger from
// github.com/book-expert/logger satisfies it.
type Logger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	Success(format string, args ...any)
}

// PageEvent describes one page written to disk.
type PageEvent struct {
	DocumentPath string
	OutputPath   string
	PageNumber   int
	TotalPages   int
}

// PagePublisher announces written pages to downstream consumers.
type PagePublisher interface {
	PublishPage(ctx context.Context, event PageEvent) error
}

// Options holds all configurable parameters for a Processor.
type Options struct {
	ProgressBarOutput      io.Writer
	Publisher              PagePublisher
	InputPaths             []string
	OutputPath             string
	Format                 string
	Engine                 string
	DPI                    int
	Workers                int
	BlankFuzzPercent       int
	BlankNonWhiteThreshold float64
	FollowSymlinks         bool
	Verbose                bool
	SkipBlank              bool
}

const (
	defaultDPI                    = 200
	defaultBlankFuzzPercent       = 5
	defaultBlankNonWhiteThreshold = 0.005
)

// applyDefaultOptions fills zero-value fields in Options with defaults.
func applyDefaultOptions(opts *Options) {
	opts.DPI = defaultIntZero(opts.DPI, defaultDPI)
	opts.Workers = ResolveMaxActive(opts.Workers)
	opts.BlankFuzzPercent = defaultIntNonPositive(
		opts.BlankFuzzPercent,
		defaultBlankFuzzPercent,
	)
	opts.BlankNonWhiteThreshold = defaultFloatNonPositive(
		opts.BlankNonWhiteThreshold,
		defaultBlankNonWhiteThreshold,
	)
	opts.ProgressBarOutput = defaultWriterNil(opts.ProgressBarOutput, io.Discard)

	if opts.Format == "" {
		opts.Format = defaultFormat
	}

	if opts.Engine == "" {
		opts.Engine = EngineFitz
	}

	if opts.OutputPath == "" {
		opts.OutputPath = "."
	}
}

func defaultIntZero(v, def int) int {
	if v == 0 {
		return def
	}

	return v
}

func defaultIntNonPositive(v, def int) int {
	if v <= 0 {
		return def
	}

	return v
}

func defaultFloatNonPositive(v, def float64) float64 {
	if v <= 0 {
		return def
	}

	return v
}

func defaultWriterNil(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}

	return w
}

// ValidateOptions applies defaults to opts and reports configuration errors.
// It normalises Format to its lower-case name.
func ValidateOptions(opts *Options) error {
	applyDefaultOptions(opts)

	if len(opts.InputPaths) == 0 {
		return ErrInputPathRequired
	}

	info, statErr := os.Stat(opts.OutputPath)
	if statErr != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrOutputNotDirectory, opts.OutputPath)
	}

	format, formatErr := NormalizeFormat(opts.Format)
	if formatErr != nil {
		return formatErr
	}

	opts.Format = format

	if opts.DPI < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidDPI, opts.DPI)
	}

	if opts.Engine != EngineFitz && opts.Engine != EngineGhostscript {
		return fmt.Errorf("%w: %q", ErrUnknownEngine, opts.Engine)
	}

	return nil
}

// Processor scans input folders and converts every page of every PDF found.
type Processor struct {
	library Library
	gate    *Gate
	log     Logger
	config  Options
}

// NewProcessor creates a Processor for opts, filling zero-value fields with
// defaults. Each Processor owns its own Gate.
func NewProcessor(opts *Options, log Logger) *Processor {
	applyDefaultOptions(opts)

	return &Processor{
		library: newLibrary(opts.Engine),
		gate:    NewGate(opts.Workers),
		log:     log,
		config:  *opts,
	}
}

func newLibrary(engine string) Library {
	if engine == EngineGhostscript {
		return NewGhostscriptLibrary(nil)
	}

	return FitzLibrary{}
}

// Process validates the configuration, scans the input folders and converts
// all documents. Per-document and per-page failures are logged, not returned.
func (processor *Processor) Process(ctx context.Context) error {
	err := processor.validateConfig()
	if err != nil {
		return err
	}

	pdfPaths := processor.discoverInputPDFs()
	processor.log.Info("Found %d PDF(s) to process.", len(pdfPaths))

	return processor.processAllPDFs(ctx, pdfPaths)
}

func (processor *Processor) validateConfig() error {
	return ValidateOptions(&processor.config)
}

// discoverInputPDFs scans every input folder into one ordered set.
func (processor *Processor) discoverInputPDFs() []string {
	set := NewDocumentSet()
	scanner := NewPathScanner(processor.config.FollowSymlinks, processor.log)

	for _, root := range processor.config.InputPaths {
		scanner.Scan(root, set)
	}

	return set.Paths()
}

// processAllPDFs dispatches every page of every document, then waits for all
// spawned page workers and drains the gate.
func (processor *Processor) processAllPDFs(ctx context.Context, pdfPaths []string) error {
	progressBar := pb.New(0).
		SetTemplateString(`{{ bar . " " "━" "━" " " " "}} {{counters .}} {{percent .}} {{rtime .}}`).
		SetWriter(processor.config.ProgressBarOutput).
		Start()
	defer progressBar.Finish()

	run := &dispatchRun{
		processor:   processor,
		progressBar: progressBar,
		stems:       make(map[string]string),
	}

	for _, pdfPath := range pdfPaths {
		if ctx.Err() != nil {
			break
		}

		run.dispatchDocument(ctx, pdfPath)
	}

	run.tasks.Wait()
	processor.gate.Drain()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("conversion interrupted: %w", ctxErr)
	}

	return nil
}

// dispatchRun holds the state of one processAllPDFs call.
type dispatchRun struct {
	processor   *Processor
	progressBar *pb.ProgressBar
	stems       map[string]string
	tasks       sync.WaitGroup
}

// dispatchDocument opens one document and spawns a page worker per page. It
// never waits for those workers.
func (run *dispatchRun) dispatchDocument(ctx context.Context, pdfPath string) {
	processor := run.processor

	if processor.config.Verbose {
		processor.log.Info("Start: %s", pdfPath)
	}

	doc, openErr := processor.library.Open(ctx, pdfPath)
	if openErr != nil {
		processor.log.Error("Cannot open file: %s: %v", pdfPath, openErr)

		return
	}

	shared := newSharedDocument(doc, pdfPath)
	defer processor.releaseDocument(shared)

	outputDir, setupErr := setupOutputDirectory(processor.config.OutputPath, pdfPath)
	if setupErr != nil {
		processor.log.Error("Cannot prepare output for %s: %v", pdfPath, setupErr)

		shared.abandoned = true

		return
	}

	stem := documentStem(pdfPath)
	if previous, used := run.stems[stem]; used {
		processor.log.Warn("%s and %s share the output folder %s", previous, pdfPath, outputDir)
	}

	run.stems[stem] = pdfPath

	pageCount := shared.PageCount()
	run.progressBar.AddTotal(int64(pageCount))

	workerCtx := context.WithoutCancel(ctx)

	for index := range pageCount {
		if ctx.Err() != nil {
			processor.log.Warn("Stopped dispatching %s at page %d: %v", pdfPath, index, ctx.Err())

			return
		}

		job := pageJob{
			pageIndex:  index,
			pageCount:  pageCount,
			outputPath: OutputName(processor.config.OutputPath, stem, index, processor.config.Format),
		}

		processor.gate.Acquire()

		job.doc = shared.retain()

		run.tasks.Go(func() {
			processor.convertPage(workerCtx, job, run.progressBar)
		})
	}
}

// releaseDocument drops one reference to shared. Whoever drops the last one
// reports the document as finished.
func (processor *Processor) releaseDocument(shared *sharedDocument) {
	closed, releaseErr := shared.release()
	if releaseErr != nil {
		processor.log.Warn("%v", releaseErr)
	}

	if closed && !shared.abandoned {
		processor.log.Success("Successfully processed %s", shared.path)
	}
}
