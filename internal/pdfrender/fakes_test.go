package pdfrender_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/book-expert/pdf-to-image/internal/pdfrender"
)

var errCorruptPDF = errors.New("corrupt pdf")

// recordingLogger collects log lines with a level prefix.
type recordingLogger struct {
	lines []string
	mu    sync.Mutex
}

func (l *recordingLogger) add(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lines = append(l.lines, level+" "+fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Info(format string, args ...any)    { l.add("INFO", format, args...) }
func (l *recordingLogger) Warn(format string, args ...any)    { l.add("WARN", format, args...) }
func (l *recordingLogger) Error(format string, args ...any)   { l.add("ERROR", format, args...) }
func (l *recordingLogger) Success(format string, args ...any) { l.add("SUCCESS", format, args...) }

// matching returns the lines containing substr, in logging order.
func (l *recordingLogger) matching(substr string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var found []string

	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			found = append(found, line)
		}
	}

	return found
}

// fakeDocSpec describes one document known to fakeLibrary, keyed by base name.
type fakeDocSpec struct {
	badPages   map[int]bool
	blankPages map[int]bool
	panicPages map[int]bool
	pages      int
	failOpen   bool
}

// fakeLibrary renders tiny images and records concurrency and lifecycle facts.
type fakeLibrary struct {
	specs       map[string]fakeDocSpec
	opened      []string
	closes      map[string]int
	renderDPIs  []int
	renderDelay time.Duration
	inFlight    atomic.Int64
	peak        atomic.Int64
	mu          sync.Mutex
}

func newFakeLibrary(specs map[string]fakeDocSpec) *fakeLibrary {
	return &fakeLibrary{specs: specs, closes: make(map[string]int)}
}

func (lib *fakeLibrary) Open(_ context.Context, pdfPath string) (pdfrender.Document, error) {
	name := filepath.Base(pdfPath)

	lib.mu.Lock()
	defer lib.mu.Unlock()

	lib.opened = append(lib.opened, name)

	spec, ok := lib.specs[name]
	if !ok || spec.failOpen {
		return nil, errCorruptPDF
	}

	return &fakeDocument{lib: lib, name: name, spec: spec}, nil
}

func (lib *fakeLibrary) closeCount(name string) int {
	lib.mu.Lock()
	defer lib.mu.Unlock()

	return lib.closes[name]
}

type fakeDocument struct {
	lib  *fakeLibrary
	spec fakeDocSpec
	name string
}

func (doc *fakeDocument) PageCount() int { return doc.spec.pages }

func (doc *fakeDocument) Page(index int) (pdfrender.Page, error) {
	if index < 0 || index >= doc.spec.pages || doc.spec.badPages[index] {
		return nil, fmt.Errorf("page %d: %w", index, pdfrender.ErrPageOutOfRange)
	}

	return &fakePage{doc: doc, index: index}, nil
}

func (doc *fakeDocument) Close() error {
	doc.lib.mu.Lock()
	defer doc.lib.mu.Unlock()

	doc.lib.closes[doc.name]++

	return nil
}

type fakePage struct {
	doc   *fakeDocument
	index int
}

func (page *fakePage) Render(_ context.Context, dpi int) (image.Image, error) {
	lib := page.doc.lib

	current := lib.inFlight.Add(1)
	defer lib.inFlight.Add(-1)

	for {
		peak := lib.peak.Load()
		if current <= peak || lib.peak.CompareAndSwap(peak, current) {
			break
		}
	}

	lib.mu.Lock()
	lib.renderDPIs = append(lib.renderDPIs, dpi)
	lib.mu.Unlock()

	if lib.renderDelay > 0 {
		time.Sleep(lib.renderDelay)
	}

	if page.doc.spec.panicPages[page.index] {
		panic("renderer crashed")
	}

	fill := color.Color(color.Black)
	if page.doc.spec.blankPages[page.index] {
		fill = color.White
	}

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := range 4 {
		for x := range 4 {
			img.Set(x, y, fill)
		}
	}

	return img, nil
}

// writePDFs creates empty placeholder PDF files under root.
func writePDFs(t *testing.T, root string, relPaths ...string) {
	t.Helper()

	for _, rel := range relPaths {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
		require.NoError(t, os.WriteFile(full, []byte("%PDF-1.4"), 0o600))
	}
}

// listFiles returns all regular files under root relative to it.
func listFiles(t *testing.T, root string) []string {
	t.Helper()

	var files []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.Type().IsRegular() {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return relErr
			}

			files = append(files, rel)
		}

		return nil
	})
	require.NoError(t, err)

	return files
}

// fakePublisher records published page events.
type fakePublisher struct {
	events []pdfrender.PageEvent
	mu     sync.Mutex
}

func (p *fakePublisher) PublishPage(_ context.Context, event pdfrender.PageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}
