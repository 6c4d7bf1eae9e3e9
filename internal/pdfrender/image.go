package pdfrender

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"slices"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ErrUnsupportedFormat is returned for image formats with no encoder.
var ErrUnsupportedFormat = errors.New("unsupported image format")

const (
	defaultFormat   = "jpg"
	jpegQuality     = 90
	defaultFileMode = 0o644
)

type encodeFunc func(w io.Writer, img image.Image) error

var encoders = map[string]encodeFunc{
	"bmp":  bmp.Encode,
	"jpeg": encodeJPEG,
	"jpg":  encodeJPEG,
	"png":  png.Encode,
	"tiff": encodeTIFF,
}

func encodeJPEG(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
}

func encodeTIFF(w io.Writer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// SupportedImageFormats lists the accepted output formats in sorted order.
func SupportedImageFormats() []string {
	formats := make([]string, 0, len(encoders))
	for format := range encoders {
		formats = append(formats, format)
	}

	slices.Sort(formats)

	return formats
}

// NormalizeFormat lower-cases format and checks that it can be encoded.
func NormalizeFormat(format string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(format))
	if _, ok := encoders[normalized]; !ok {
		return "", fmt.Errorf(
			"%w: %q (expected one of %s)",
			ErrUnsupportedFormat,
			format,
			strings.Join(SupportedImageFormats(), "|"),
		)
	}

	return normalized, nil
}

// SaveImage encodes img to outputPath in format, replacing any existing file.
func SaveImage(img image.Image, outputPath, format string) (err error) {
	encode, ok := encoders[format]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	file, openErr := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, defaultFileMode)
	if openErr != nil {
		return fmt.Errorf("could not create %s: %w", outputPath, openErr)
	}

	defer func() {
		closeErr := file.Close()
		if closeErr != nil && err == nil {
			err = fmt.Errorf("could not close %s: %w", outputPath, closeErr)
		}
	}()

	encodeErr := encode(file, img)
	if encodeErr != nil {
		return fmt.Errorf("could not encode %s as %s: %w", outputPath, format, encodeErr)
	}

	return nil
}
