package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/pdf-to-image/internal/notify"
	"github.com/book-expert/pdf-to-image/internal/pdfrender"
)

func TestParseFlags_DefaultsAndShortNames(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	flgs, _, err := parseFlags([]string{"in1", "in2"}, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"in1", "in2"}, flgs.inputFolders)
	assert.Equal(t, "jpg", flgs.format)
	assert.Equal(t, 200, flgs.dpi)
	assert.Equal(t, ".", flgs.outputPath)
	assert.False(t, flgs.symlinks)
	assert.False(t, flgs.verbose)

	flgs, _, err = parseFlags(
		[]string{"-s", "-v", "-t", "PNG", "-D", "150", "-d", "/out", "-w", "3", "in"},
		&out,
	)
	require.NoError(t, err)
	assert.True(t, flgs.symlinks)
	assert.True(t, flgs.verbose)
	assert.Equal(t, "PNG", flgs.format)
	assert.Equal(t, 150, flgs.dpi)
	assert.Equal(t, "/out", flgs.outputPath)
	assert.Equal(t, 3, flgs.workers)
	assert.Equal(t, []string{"in"}, flgs.inputFolders)

	_, _, err = parseFlags([]string{"--no-such-flag"}, &out)
	require.ErrorIs(t, err, errConfig)

	_, _, err = parseFlags([]string{"--dpi", "many"}, &out)
	require.ErrorIs(t, err, errConfig)
}

// TestMergeConfigAndFlags verifies that explicit flags override config file
// settings and that config values replace flag defaults.
func TestMergeConfigAndFlags(t *testing.T) {
	t.Parallel()

	cfg := config{
		Paths:    configPaths{OutputDir: "/config/out", LogsDir: "/config/logs"},
		Settings: configSettings{Type: "tiff", Engine: "ghostscript", DPI: 300, Workers: 2},
		BlankDetection: configBlankDetection{
			FuzzPercent:       10,
			NonWhiteThreshold: 0.1,
			Skip:              true,
		},
		NATS: configNATS{
			URL:      "nats://cfg:4222",
			Subject:  "cfg.pages",
			Stream:   "PAGES",
			TenantID: "t",
			UserID:   "u",
		},
	}

	testCases := []struct {
		name     string
		args     []string
		expected settings
	}{
		{
			name: "Config values replace flag defaults",
			args: []string{"in"},
			expected: settings{
				options: pdfrender.Options{
					InputPaths:             []string{"in"},
					OutputPath:             "/config/out",
					Format:                 "tiff",
					Engine:                 "ghostscript",
					DPI:                    300,
					Workers:                2,
					BlankFuzzPercent:       10,
					BlankNonWhiteThreshold: 0.1,
					SkipBlank:              true,
				},
				nats: notify.Config{
					URL:      "nats://cfg:4222",
					Subject:  "cfg.pages",
					Stream:   "PAGES",
					TenantID: "t",
					UserID:   "u",
				},
				logDir: "/config/logs",
			},
		},
		{
			name: "Explicit flags override config values",
			args: []string{
				"-d", "/flag/out", "-t", "png", "-e", "fitz", "-D", "150", "-w", "8",
				"--log-dir", "/flag/logs", "--nats-subject", "flag.pages", "-v", "in",
			},
			expected: settings{
				options: pdfrender.Options{
					InputPaths:             []string{"in"},
					OutputPath:             "/flag/out",
					Format:                 "png",
					Engine:                 "fitz",
					DPI:                    150,
					Workers:                8,
					BlankFuzzPercent:       10,
					BlankNonWhiteThreshold: 0.1,
					SkipBlank:              true,
					Verbose:                true,
				},
				nats: notify.Config{
					URL:      "nats://cfg:4222",
					Subject:  "flag.pages",
					Stream:   "PAGES",
					TenantID: "t",
					UserID:   "u",
				},
				logDir: "/flag/logs",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer

			flgs, fs, err := parseFlags(tc.args, &out)
			require.NoError(t, err)

			result := mergeConfigAndFlags(&cfg, &flgs, fs)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config{}, cfg)

	path := filepath.Join(t.TempDir(), "pdf-to-image.toml")
	content := `
[paths]
output_dir = "/srv/out"

[settings]
type = "png"
dpi = 96
follow_symlinks = true

[nats]
url = "nats://localhost:4222"
subject = "pages.created"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/out", cfg.Paths.OutputDir)
	assert.Equal(t, "png", cfg.Settings.Type)
	assert.Equal(t, 96, cfg.Settings.DPI)
	assert.True(t, cfg.Settings.FollowSymlinks)
	assert.Equal(t, "pages.created", cfg.NATS.Subject)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, errConfig)

	broken := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(broken, []byte("[settings\ndpi = "), 0o600))

	_, err = loadConfig(broken)
	require.ErrorIs(t, err, errConfig)
}

func TestRun_ConfigurationFailures(t *testing.T) {
	t.Parallel()

	inDir := t.TempDir()
	destDir := t.TempDir()
	notADir := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0o600))

	testCases := []struct {
		name string
		args []string
	}{
		{name: "Help requested", args: []string{"--help", inDir}},
		{name: "Short help requested", args: []string{"-h"}},
		{name: "No input folders", args: []string{"-d", destDir}},
		{name: "Destination does not exist", args: []string{"--dest", "/does/not/exist", inDir}},
		{name: "Destination is a file", args: []string{"--dest", notADir, inDir}},
		{name: "Unsupported type", args: []string{"-d", destDir, "-t", "gif", inDir}},
		{name: "Zero DPI", args: []string{"-d", destDir, "-D", "0", inDir}},
		{name: "Negative DPI", args: []string{"-d", destDir, "-D", "-5", inDir}},
		{name: "Negative workers", args: []string{"-d", destDir, "-w", "-3", inDir}},
		{name: "Unknown engine", args: []string{"-d", destDir, "-e", "poppler", inDir}},
		{name: "Unknown flag", args: []string{"--bogus", inDir}},
		{name: "Missing config file", args: []string{"-c", "/does/not/exist.toml", inDir}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var stderr bytes.Buffer

			code := run(context.Background(), tc.args, &stderr)
			assert.Equal(t, exitFailure, code)
			assert.Contains(t, stderr.String(), "Usage: pdf-to-image")
		})
	}

	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "configuration failures must not produce output")
}

func TestBuildSettings_NormalizesType(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer

	runSettings, _, err := buildSettings([]string{"-d", t.TempDir(), "-t", "PNG", t.TempDir()}, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "png", runSettings.options.Format)
	assert.Equal(t, 200, runSettings.options.DPI)
	assert.Equal(t, pdfrender.ResolveMaxActive(0), runSettings.options.Workers)
}

func TestBuildSettings_RejectsExplicitNegativeValues(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer

	_, _, err := buildSettings([]string{"-d", t.TempDir(), "--workers", "-3", t.TempDir()}, &stderr)
	require.ErrorIs(t, err, errConfig)
	require.ErrorIs(t, err, pdfrender.ErrInvalidWorkers)

	_, _, err = buildSettings([]string{"-d", t.TempDir(), "--dpi", "0", t.TempDir()}, &stderr)
	require.ErrorIs(t, err, pdfrender.ErrInvalidDPI)

	runSettings, _, err := buildSettings([]string{"-d", t.TempDir(), "--workers", "0", t.TempDir()}, &stderr)
	require.NoError(t, err)
	assert.Equal(t, pdfrender.ResolveMaxActive(0), runSettings.options.Workers)
}
