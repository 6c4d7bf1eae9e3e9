package main

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
	flag "github.com/spf13/pflag"

	"github.com/book-expert/pdf-to-image/internal/notify"
	"github.com/book-expert/pdf-to-image/internal/pdfrender"
)

// errConfig marks failures the user must fix before any work starts.
var errConfig = errors.New("configuration error")

type configPaths struct {
	OutputDir string `toml:"output_dir"`
	LogsDir   string `toml:"logs_dir"`
}

type configSettings struct {
	Type           string `toml:"type"`
	Engine         string `toml:"engine"`
	DPI            int    `toml:"dpi"`
	Workers        int    `toml:"workers"`
	FollowSymlinks bool   `toml:"follow_symlinks"`
}

type configBlankDetection struct {
	FuzzPercent       int     `toml:"fuzz_percent"`
	NonWhiteThreshold float64 `toml:"non_white_threshold"`
	Skip              bool    `toml:"skip"`
}

type configNATS struct {
	URL      string `toml:"url"`
	Subject  string `toml:"subject"`
	Stream   string `toml:"stream"`
	TenantID string `toml:"tenant_id"`
	UserID   string `toml:"user_id"`
}

// config represents the optional TOML config file.
type config struct {
	Paths          configPaths          `toml:"paths"`
	Settings       configSettings       `toml:"settings"`
	BlankDetection configBlankDetection `toml:"blank_detection"`
	NATS           configNATS           `toml:"nats"`
}

// loadConfig reads the config file at path; an empty path yields a zero config.
func loadConfig(path string) (config, error) {
	var cfg config

	if path == "" {
		return cfg, nil
	}

	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		var zero config

		return zero, fmt.Errorf("%w: failed to decode config file: %w", errConfig, err)
	}

	return cfg, nil
}

// settings is the merged result of config file and flags.
type settings struct {
	options pdfrender.Options
	nats    notify.Config
	logDir  string
}

// mergeConfigAndFlags combines the config file and command-line flags.
// Flags set explicitly on the command line take precedence; flag defaults
// apply only when the config file leaves a value empty.
func mergeConfigAndFlags(cfg *config, flgs *flags, fs *flag.FlagSet) settings {
	pick := func(name, flagValue, configValue string) string {
		if fs.Changed(name) || configValue == "" {
			return flagValue
		}

		return configValue
	}

	pickInt := func(name string, flagValue, configValue int) int {
		if fs.Changed(name) || configValue == 0 {
			return flagValue
		}

		return configValue
	}

	opts := pdfrender.Options{
		InputPaths:             flgs.inputFolders,
		OutputPath:             pick("dest", flgs.outputPath, cfg.Paths.OutputDir),
		Format:                 pick("type", flgs.format, cfg.Settings.Type),
		Engine:                 pick("engine", flgs.engine, cfg.Settings.Engine),
		DPI:                    pickInt("dpi", flgs.dpi, cfg.Settings.DPI),
		Workers:                pickInt("workers", flgs.workers, cfg.Settings.Workers),
		BlankFuzzPercent:       cfg.BlankDetection.FuzzPercent,
		BlankNonWhiteThreshold: cfg.BlankDetection.NonWhiteThreshold,
		FollowSymlinks:         flgs.symlinks || cfg.Settings.FollowSymlinks,
		Verbose:                flgs.verbose,
		SkipBlank:              flgs.skipBlank || cfg.BlankDetection.Skip,
	}

	return settings{
		options: opts,
		nats: notify.Config{
			URL:      pick("nats-url", flgs.natsURL, cfg.NATS.URL),
			Subject:  pick("nats-subject", flgs.natsSubject, cfg.NATS.Subject),
			Stream:   pick("nats-stream", flgs.natsStream, cfg.NATS.Stream),
			TenantID: cfg.NATS.TenantID,
			UserID:   cfg.NATS.UserID,
		},
		logDir: pick("log-dir", flgs.logDir, cfg.Paths.LogsDir),
	}
}
