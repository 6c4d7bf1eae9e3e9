package pdfrender

import (
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// FitzLibrary opens documents with MuPDF through go-fitz. go-fitz serialises
// calls on one document internally, so pages of a shared document may be
// rendered from several goroutines.
type FitzLibrary struct{}

// Open parses the PDF at pdfPath.
func (FitzLibrary) Open(_ context.Context, pdfPath string) (Document, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("mupdf could not open %s: %w", pdfPath, err)
	}

	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (fd *fitzDocument) PageCount() int { return fd.doc.NumPage() }

// Page loads the page bounds to confirm the page is usable before handing it out.
func (fd *fitzDocument) Page(index int) (Page, error) {
	if index < 0 || index >= fd.doc.NumPage() {
		return nil, fmt.Errorf("page %d: %w", index, ErrPageOutOfRange)
	}

	_, boundErr := fd.doc.Bound(index)
	if boundErr != nil {
		return nil, fmt.Errorf("could not load page %d: %w", index, boundErr)
	}

	return &fitzPage{doc: fd.doc, index: index}, nil
}

func (fd *fitzDocument) Close() error { return fd.doc.Close() }

type fitzPage struct {
	doc   *fitz.Document
	index int
}

func (fp *fitzPage) Render(_ context.Context, dpi int) (image.Image, error) {
	img, err := fp.doc.ImageDPI(fp.index, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("mupdf could not render page %d: %w", fp.index, err)
	}

	return img, nil
}
