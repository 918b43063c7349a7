package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	StateDir   string `toml:"state_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Transcode configures the external ffmpeg/ffprobe boundary.
type Transcode struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxInputMB     int    `toml:"max_input_mb"`
}

// Speakers controls diarization and the gap heuristic used when it is unavailable.
type Speakers struct {
	Diarization    bool    `toml:"diarization"`
	HFToken        string  `toml:"hf_token"`
	Model          string  `toml:"model"`
	GapSeconds     float64 `toml:"gap_seconds"`
	HeuristicSlots int     `toml:"heuristic_slots"`
}

// VoiceSamples controls reference-sample curation for voice cloning.
type VoiceSamples struct {
	Enabled    bool    `toml:"enabled"`
	MinSeconds float64 `toml:"min_seconds"`
	MaxSeconds float64 `toml:"max_seconds"`
	SampleRate int     `toml:"sample_rate"`
	Keep       bool    `toml:"keep"`
}

// Timing bounds the playback-speed factor.
type Timing struct {
	WordsPerMinute float64 `toml:"words_per_minute"`
	MinSpeed       float64 `toml:"min_speed"`
	MaxSpeed       float64 `toml:"max_speed"`
}

// Synthesis configures the TTS collaborator.
type Synthesis struct {
	Backend        string `toml:"backend"`
	Concurrency    int    `toml:"concurrency"`
	DefaultSpeaker string `toml:"default_speaker"`
	Voice          string `toml:"voice"`
	XTTSModel      string `toml:"xtts_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Background selects how the original soundtrack is preserved under the dub.
type Background struct {
	Mode             string   `toml:"mode"`
	DuckDB           float64  `toml:"duck_db"`
	DuckWindowed     bool     `toml:"duck_windowed"`
	SeparationModels []string `toml:"separation_models"`
	TimeoutSeconds   int      `toml:"timeout_seconds"`
}

// WhisperX configures transcription when no segment file is supplied.
type WhisperX struct {
	Model          string `toml:"model"`
	CUDAEnabled    bool   `toml:"cuda_enabled"`
	VADMethod      string `toml:"vad_method"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LLM contains connection settings for the translation client.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Staging controls crash-leftover cleanup of job work directories.
type Staging struct {
	StaleHours int `toml:"stale_hours"`
}

// Config encapsulates all configuration values for redub.
//
// Configuration sections by subsystem:
//   - Paths: staging, log, and state directories
//   - Logging: log format and level
//   - Transcode: ffmpeg/ffprobe binaries, per-call timeout, input size cap
//   - Speakers: diarization and the gap heuristic fallback
//   - VoiceSamples: reference-sample curation for cloning
//   - Timing: words-per-minute estimate and speed clamp
//   - Synthesis: TTS backend, concurrency, default speaker
//   - Background: separated or ducked background preparation
//   - WhisperX: transcription front-end
//   - LLM: translation client
//   - Staging: stale work-dir cleanup
type Config struct {
	Paths        Paths        `toml:"paths"`
	Logging      Logging      `toml:"logging"`
	Transcode    Transcode    `toml:"transcode"`
	Speakers     Speakers     `toml:"speakers"`
	VoiceSamples VoiceSamples `toml:"voice_samples"`
	Timing       Timing       `toml:"timing"`
	Synthesis    Synthesis    `toml:"synthesis"`
	Background   Background   `toml:"background"`
	WhisperX     WhisperX     `toml:"whisperx"`
	LLM          LLM          `toml:"llm"`
	Staging      Staging      `toml:"staging"`
}

const defaultConfigLocation = "~/.config/redub/config.toml"

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigLocation)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigLocation)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("redub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the staging, log, and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JobStorePath returns the sqlite job history location.
func (c *Config) JobStorePath() string {
	return filepath.Join(c.Paths.StateDir, "jobs.db")
}

// TranscodeTimeout returns the per-call bound for transcoder subprocesses.
func (c *Config) TranscodeTimeout() time.Duration {
	return time.Duration(c.Transcode.TimeoutSeconds) * time.Second
}

// SynthesisTimeout returns the per-segment bound for TTS calls.
func (c *Config) SynthesisTimeout() time.Duration {
	return time.Duration(c.Synthesis.TimeoutSeconds) * time.Second
}

// SeparationTimeout returns the per-pass bound for source separation.
func (c *Config) SeparationTimeout() time.Duration {
	return time.Duration(c.Background.TimeoutSeconds) * time.Second
}

// TranscriptionTimeout returns the bound for a whole WhisperX run.
func (c *Config) TranscriptionTimeout() time.Duration {
	return time.Duration(c.WhisperX.TimeoutSeconds) * time.Second
}

// StaleWorkDirAge returns how old a job work dir must be before cleanup removes it.
func (c *Config) StaleWorkDirAge() time.Duration {
	return time.Duration(c.Staging.StaleHours) * time.Hour
}

// MaxInputBytes returns the source-size ceiling in bytes.
func (c *Config) MaxInputBytes() int64 {
	return int64(c.Transcode.MaxInputMB) * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Marshal renders the effective configuration as TOML with secrets redacted.
func (c *Config) Marshal() ([]byte, error) {
	clone := *c
	clone.Background.SeparationModels = append([]string(nil), c.Background.SeparationModels...)
	if clone.Speakers.HFToken != "" {
		clone.Speakers.HFToken = "<redacted>"
	}
	if clone.LLM.APIKey != "" {
		clone.LLM.APIKey = "<redacted>"
	}
	return toml.Marshal(clone)
}
