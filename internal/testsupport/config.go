// Package testsupport builds configs, stores and media fixtures for tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"redub/internal/config"
)

// ConfigOption adjusts a test config. base is the temp root holding the
// config's directories.
type ConfigOption func(t testing.TB, base string, cfg *config.Config)

// NewConfig returns the default config rooted in a fresh temp directory,
// with diarization off and the ducked background so tests need no models.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.Paths{
		StagingDir: filepath.Join(base, "staging"),
		LogDir:     filepath.Join(base, "logs"),
		StateDir:   filepath.Join(base, "state"),
	}
	cfg.Speakers.Diarization = false
	cfg.Background.Mode = config.BackgroundDucked
	for _, opt := range opts {
		opt(t, base, &cfg)
	}
	return &cfg
}

// WithSeparation selects the separated background, optionally with models.
func WithSeparation(models ...string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Background.Mode = config.BackgroundSeparated
		if len(models) > 0 {
			cfg.Background.SeparationModels = models
		}
	}
}

// WithVoiceSampleBounds sets the curation minimum and cap.
func WithVoiceSampleBounds(minSeconds, maxSeconds float64) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.VoiceSamples.MinSeconds = minSeconds
		cfg.VoiceSamples.MaxSeconds = maxSeconds
	}
}

// WithStubbedBinaries puts no-op executables named names (default ffmpeg,
// ffprobe and uvx) first on PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, base string, _ *config.Config) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "uvx"}
		}
		bin := filepath.Join(base, "bin")
		if err := os.MkdirAll(bin, 0o755); err != nil {
			t.Fatalf("mkdir bin: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the temp root behind a config from NewConfig.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
