// Package blank decides whether a rendered page image is effectively empty.
package blank

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // Register decoders for LoadImage.
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

var (
	// ErrInvalidFuzzPercent is returned for a fuzz outside 0..100.
	ErrInvalidFuzzPercent = errors.New("fuzz percentage must be between 0 and 100")
	// ErrInvalidThreshold is returned for a threshold outside 0.0..1.0.
	ErrInvalidThreshold = errors.New("non-white threshold must be between 0.0 and 1.0")
	// ErrImageZeroPixels is returned for an empty image.
	ErrImageZeroPixels = errors.New("image has zero pixels")
)

const (
	percentToRatio = 100.0
	maxColorValue  = 255.0
	bitsToShift    = 8
)

// HasContent reports whether the share of non-white pixels in img reaches
// nonWhiteThreshold. A pixel is non-white when any 8-bit channel falls below
// (1 - fuzzPercent/100) * 255.
func HasContent(img image.Image, fuzzPercent int, nonWhiteThreshold float64) (bool, error) {
	if fuzzPercent < 0 || fuzzPercent > 100 {
		return false, fmt.Errorf("got %d: %w", fuzzPercent, ErrInvalidFuzzPercent)
	}

	if nonWhiteThreshold < 0 || nonWhiteThreshold > 1 {
		return false, fmt.Errorf("got %f: %w", nonWhiteThreshold, ErrInvalidThreshold)
	}

	bounds := img.Bounds()

	totalPixels := float64(bounds.Dx() * bounds.Dy())
	if totalPixels == 0 {
		return false, ErrImageZeroPixels
	}

	fuzzFactor := float64(fuzzPercent) / percentToRatio
	whiteThreshold := uint32((1.0 - fuzzFactor) * maxColorValue)

	nonWhiteRatio := countNonWhitePixels(img, whiteThreshold) / totalPixels

	return nonWhiteRatio >= nonWhiteThreshold, nil
}

func countNonWhitePixels(img image.Image, whiteThreshold uint32) float64 {
	nonWhiteCount := 0.0
	bounds := img.Bounds()

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if isNonWhite(img.At(x, y), whiteThreshold) {
				nonWhiteCount++
			}
		}
	}

	return nonWhiteCount
}

// isNonWhite scales the 16-bit channels of c to 8 bits and compares them.
func isNonWhite(c color.Color, whiteThreshold uint32) bool {
	r, g, b, _ := c.RGBA()

	r8, g8, b8 := r>>bitsToShift, g>>bitsToShift, b>>bitsToShift

	return r8 < whiteThreshold || g8 < whiteThreshold || b8 < whiteThreshold
}

// LoadImage opens and decodes a png, jpeg, bmp or tiff file.
func LoadImage(filePath string) (image.Image, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("could not open file %s: %w", filePath, err)
	}

	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("could not decode image file %s: %w", filePath, err)
	}

	return img, nil
}
