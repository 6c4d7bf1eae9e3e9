package pdfrender

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	// defaultDirMode is the default permissions for created directories.
	defaultDirMode = 0o750

	pdfExtension = ".pdf"
)

// DocumentSet is an ordered, duplicate-free set of canonical PDF paths.
type DocumentSet struct {
	paths map[string]struct{}
}

// NewDocumentSet returns an empty set.
func NewDocumentSet() *DocumentSet {
	return &DocumentSet{paths: make(map[string]struct{})}
}

// Add inserts the canonical form of pdfPath.
func (set *DocumentSet) Add(pdfPath string) {
	set.paths[canonicalPath(pdfPath)] = struct{}{}
}

// Len returns the number of documents in the set.
func (set *DocumentSet) Len() int { return len(set.paths) }

// Paths returns the documents sorted lexicographically.
func (set *DocumentSet) Paths() []string {
	sorted := make([]string, 0, len(set.paths))
	for pdfPath := range set.paths {
		sorted = append(sorted, pdfPath)
	}

	slices.Sort(sorted)

	return sorted
}

// canonicalPath returns the absolute, cleaned form of p. Symlinks are not
// resolved; a followed link already yields its target path.
func canonicalPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}

	return abs
}

// PathScanner recursively discovers PDF files. Failures are logged and only
// abandon the affected branch.
type PathScanner struct {
	log            Logger
	visited        map[string]struct{}
	followSymlinks bool
}

// NewPathScanner creates a scanner. Directories and followed symlinks are
// visited at most once per scanner, which also stops symlink cycles.
func NewPathScanner(followSymlinks bool, log Logger) *PathScanner {
	return &PathScanner{
		log:            log,
		visited:        make(map[string]struct{}),
		followSymlinks: followSymlinks,
	}
}

// Scan adds every PDF under root to set.
func (scanner *PathScanner) Scan(root string, set *DocumentSet) {
	info, statErr := os.Lstat(root)
	if statErr != nil {
		scanner.log.Error("%v", statErr)

		return
	}

	mode := info.Mode()

	switch {
	case mode&fs.ModeSymlink != 0:
		if scanner.followSymlinks {
			scanner.followLink(root, set)
		}
	case mode.IsRegular():
		if isPDF(root) {
			set.Add(root)
		}
	case mode.IsDir():
		scanner.scanDir(root, set)
	}
}

func (scanner *PathScanner) followLink(link string, set *DocumentSet) {
	if !scanner.firstVisit("link:" + canonicalPath(link)) {
		return
	}

	target, readErr := os.Readlink(link)
	if readErr != nil {
		scanner.log.Error("%v", readErr)

		return
	}

	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(link), target)
	}

	scanner.Scan(target, set)
}

func (scanner *PathScanner) scanDir(dir string, set *DocumentSet) {
	resolved, evalErr := filepath.EvalSymlinks(dir)
	if evalErr != nil {
		resolved = dir
	}

	if !scanner.firstVisit("dir:" + canonicalPath(resolved)) {
		return
	}

	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		if !errors.Is(readErr, fs.ErrPermission) {
			scanner.log.Error("%v", readErr)
		}

		return
	}

	for _, entry := range entries {
		scanner.Scan(filepath.Join(dir, entry.Name()), set)
	}
}

func (scanner *PathScanner) firstVisit(key string) bool {
	if _, seen := scanner.visited[key]; seen {
		return false
	}

	scanner.visited[key] = struct{}{}

	return true
}

// isPDF reports whether p has a .pdf extension and a non-empty stem. A file
// named just ".pdf" is a dotfile, not a document.
func isPDF(p string) bool {
	return strings.ToLower(filepath.Ext(p)) == pdfExtension && documentStem(p) != ""
}

// documentStem returns the file name of pdfPath without its extension.
func documentStem(pdfPath string) string {
	base := filepath.Base(pdfPath)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OutputName returns "<dest>/<stem>/<stem> <index>.<ext>" with the zero-based
// index padded to at least four digits. Indices above 9999 widen the field.
func OutputName(dest, stem string, index int, ext string) string {
	fileName := fmt.Sprintf("%s %04d.%s", stem, index, ext)

	return filepath.Join(dest, stem, fileName)
}

// setupOutputDirectory creates "<baseOutputPath>/<stem>" for pdfPath if absent.
func setupOutputDirectory(baseOutputPath, pdfPath string) (string, error) {
	outputDir := filepath.Join(baseOutputPath, documentStem(pdfPath))

	mkdirErr := os.Mkdir(outputDir, defaultDirMode)
	if mkdirErr != nil && !errors.Is(mkdirErr, fs.ErrExist) {
		return "", fmt.Errorf(
			"failed to create output directory %s: %w",
			outputDir,
			mkdirErr,
		)
	}

	if mkdirErr != nil {
		info, statErr := os.Stat(outputDir)
		if statErr != nil || !info.IsDir() {
			return "", fmt.Errorf("output path %s exists and is not a directory", outputDir)
		}
	}

	return outputDir, nil
}
