package pdfrender

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"
)

// ErrPdfInfoNoPages is returned when pdfinfo output carries no page count.
var ErrPdfInfoNoPages = errors.New("could not parse 'Pages:' line from pdfinfo output")

// CommandExecutor defines an interface for running external commands.
// Tests substitute a fake to avoid depending on installed binaries.
type CommandExecutor interface {
	// Run executes a command and returns its standard output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// defaultExecutor runs commands with os/exec.
type defaultExecutor struct{}

func (executor *defaultExecutor) Run(
	ctx context.Context,
	name string,
	args ...string,
) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

const (
	pdfInfoBinary     = "pdfinfo"
	ghostscriptBinary = "gs"
)

// GhostscriptLibrary reads page counts with pdfinfo and renders single pages
// with Ghostscript, decoding the PNG it writes to stdout.
type GhostscriptLibrary struct {
	executor CommandExecutor
}

// NewGhostscriptLibrary returns a library running commands through executor,
// or through os/exec when executor is nil.
func NewGhostscriptLibrary(executor CommandExecutor) *GhostscriptLibrary {
	if executor == nil {
		executor = &defaultExecutor{}
	}

	return &GhostscriptLibrary{executor: executor}
}

// Open determines the page count of pdfPath; a document pdfinfo cannot read
// fails to open.
func (library *GhostscriptLibrary) Open(ctx context.Context, pdfPath string) (Document, error) {
	if pdfPath == "" {
		return nil, errors.New("pdf path cannot be empty")
	}

	outputBytes, execErr := library.executor.Run(ctx, pdfInfoBinary, pdfPath)
	if execErr != nil {
		return nil, fmt.Errorf("pdfinfo execution failed: %w", execErr)
	}

	pageCount, parseErr := parsePdfInfoOutput(string(outputBytes))
	if parseErr != nil {
		return nil, parseErr
	}

	return &ghostscriptDocument{
		library:   library,
		pdfPath:   pdfPath,
		pageCount: pageCount,
	}, nil
}

// parsePdfInfoOutput finds and parses the "Pages:" line of pdfinfo output.
func parsePdfInfoOutput(output string) (int, error) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != "Pages:" {
			continue
		}

		pageCount, convErr := strconv.Atoi(fields[1])
		if convErr == nil && pageCount >= 0 {
			return pageCount, nil
		}
	}

	return 0, ErrPdfInfoNoPages
}

type ghostscriptDocument struct {
	library   *GhostscriptLibrary
	pdfPath   string
	pageCount int
}

func (doc *ghostscriptDocument) PageCount() int { return doc.pageCount }

func (doc *ghostscriptDocument) Page(index int) (Page, error) {
	if index < 0 || index >= doc.pageCount {
		return nil, fmt.Errorf("page %d: %w", index, ErrPageOutOfRange)
	}

	return &ghostscriptPage{doc: doc, index: index}, nil
}

// Close is a no-op; every render is a separate process.
func (doc *ghostscriptDocument) Close() error { return nil }

type ghostscriptPage struct {
	doc   *ghostscriptDocument
	index int
}

func (page *ghostscriptPage) Render(ctx context.Context, dpi int) (image.Image, error) {
	args := buildGhostscriptArgs(dpi, page.index+1, page.doc.pdfPath)

	outputBytes, execErr := page.doc.library.executor.Run(ctx, ghostscriptBinary, args...)
	if execErr != nil {
		return nil, fmt.Errorf("ghostscript execution failed: %w", execErr)
	}

	img, decodeErr := png.Decode(bytes.NewReader(outputBytes))
	if decodeErr != nil {
		return nil, fmt.Errorf("could not decode ghostscript output: %w", decodeErr)
	}

	return img, nil
}

// buildGhostscriptArgs renders one 1-based page as 24-bit PNG to stdout.
func buildGhostscriptArgs(dpi, pageNumber int, pdfPath string) []string {
	return []string{
		"-q", "-dNOPAUSE", "-dBATCH", "-dSAFER",
		"-sDEVICE=png16m",
		fmt.Sprintf("-r%d", dpi),
		fmt.Sprintf("-dFirstPage=%d", pageNumber),
		fmt.Sprintf("-dLastPage=%d", pageNumber),
		"-dTextAlphaBits=4",
		"-dGraphicsAlphaBits=4",
		"-o", "-",
		pdfPath,
	}
}
