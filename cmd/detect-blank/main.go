// Command detect-blank checks a rendered page image and exits with a code
// telling whether the page is blank (mostly white) or has content.
//
// Usage: detect-blank <filepath> <fuzz_percent> <non_white_threshold>
// - fuzz_percent: 0..100 tolerated deviation from pure white
// - non_white_threshold: 0.0..1.0 minimum ratio of non-white pixels to count as content
//
// Exit codes:
//
//	0 = blank image
//	1 = image has content
//	2 = error (bad args, cannot open/decode image, etc.)
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/book-expert/pdf-to-image/internal/blank"
)

// ErrInvalidArguments is returned for a wrong argument count.
var ErrInvalidArguments = errors.New("invalid number of arguments")

// arguments holds the parsed command-line arguments.
type arguments struct {
	filePath    string
	fuzzPercent int
	threshold   float64
}

const (
	exitCodeBlank    = 0
	exitCodeNotBlank = 1
	exitCodeError    = 2

	expectedArgCount = 4
)

func main() {
	os.Exit(run(os.Args))
}

func run(argv []string) int {
	args, err := parseArguments(argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Argument error: %v\n", err)

		return exitCodeError
	}

	hasContent, err := imageHasContent(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Image analysis error: %v\n", err)

		return exitCodeError
	}

	if hasContent {
		return exitCodeNotBlank
	}

	return exitCodeBlank
}

// parseArguments converts argv into arguments. Range checks are left to
// blank.HasContent.
func parseArguments(argv []string) (arguments, error) {
	if len(argv) != expectedArgCount {
		return arguments{}, fmt.Errorf(
			"expected 3 arguments, got %d. Usage: detect-blank <filepath> <fuzz_percent> <threshold>: %w",
			len(argv)-1,
			ErrInvalidArguments,
		)
	}

	fuzzPercent, err := strconv.Atoi(argv[2])
	if err != nil {
		return arguments{}, fmt.Errorf("invalid fuzz percentage '%s': %w", argv[2], err)
	}

	threshold, err := strconv.ParseFloat(argv[3], 64)
	if err != nil {
		return arguments{}, fmt.Errorf("invalid non-white threshold '%s': %w", argv[3], err)
	}

	return arguments{
		filePath:    argv[1],
		fuzzPercent: fuzzPercent,
		threshold:   threshold,
	}, nil
}

func imageHasContent(args arguments) (bool, error) {
	img, err := blank.LoadImage(args.filePath)
	if err != nil {
		return false, err
	}

	return blank.HasContent(img, args.fuzzPercent, args.threshold)
}
