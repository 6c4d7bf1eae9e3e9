package pdfrender

// Exported test-only accessors for unexported functions and fields.
// This file is compiled only during tests and does not affect the public API.

// ParsePdfInfoOutputForTest exposes parsePdfInfoOutput for tests in external package.
func ParsePdfInfoOutputForTest(s string) (int, error) { return parsePdfInfoOutput(s) }

// BuildGhostscriptArgsForTest exposes buildGhostscriptArgs.
func BuildGhostscriptArgsForTest(dpi, pageNumber int, pdfPath string) []string {
	return buildGhostscriptArgs(dpi, pageNumber, pdfPath)
}

// SetupOutputDirectoryForTest exposes setupOutputDirectory.
func SetupOutputDirectoryForTest(baseOutputPath, pdfPath string) (string, error) {
	return setupOutputDirectory(baseOutputPath, pdfPath)
}

// ConfigForTest returns a copy of the processor configuration for assertions in tests.
func (processor *Processor) ConfigForTest() Options { return processor.config }

// GateForTest returns the processor's gate for invariant checks.
func (processor *Processor) GateForTest() *Gate { return processor.gate }

// LibraryForTest returns the library selected by the engine option.
func (processor *Processor) LibraryForTest() Library { return processor.library }

// SetLibraryForTest allows tests to inject a fake document library.
func (processor *Processor) SetLibraryForTest(library Library) {
	processor.library = library
}
