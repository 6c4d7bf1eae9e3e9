package pdfrender

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
)

// ErrPageOutOfRange is returned when a page index is outside [0, PageCount).
var ErrPageOutOfRange = errors.New("page index out of range")

// Library opens PDF documents. Implementations must allow concurrent
// Page and Render calls on distinct pages of one Document.
type Library interface {
	Open(ctx context.Context, pdfPath string) (Document, error)
}

// Document is a parsed PDF. Only read operations are performed on it.
type Document interface {
	PageCount() int
	Page(index int) (Page, error)
	Close() error
}

// Page is one page of a Document, obtained on demand.
type Page interface {
	// Render rasterizes the page at dpi on both axes.
	Render(ctx context.Context, dpi int) (image.Image, error)
}

// sharedDocument reference-counts a Document shared by the dispatcher and
// its page workers. The document is closed when the last holder releases.
type sharedDocument struct {
	Document

	path string
	refs atomic.Int64

	// abandoned is set by the dispatcher before any page is spawned when
	// the document produces no output.
	abandoned bool
}

// newSharedDocument wraps doc with a single reference held by the caller.
func newSharedDocument(doc Document, pdfPath string) *sharedDocument {
	shared := &sharedDocument{Document: doc, path: pdfPath}
	shared.refs.Store(1)

	return shared
}

// retain adds a reference and returns the same handle for the new holder.
func (shared *sharedDocument) retain() *sharedDocument {
	if shared.refs.Add(1) <= 1 {
		panic("pdfrender: retain on a released document")
	}

	return shared
}

// release drops one reference and closes the document on the last one.
// It reports whether this call closed the document.
func (shared *sharedDocument) release() (bool, error) {
	remaining := shared.refs.Add(-1)

	switch {
	case remaining > 0:
		return false, nil
	case remaining < 0:
		panic("pdfrender: document released more times than retained")
	}

	closeErr := shared.Close()
	if closeErr != nil {
		return true, fmt.Errorf("failed to close %s: %w", shared.path, closeErr)
	}

	return true, nil
}
