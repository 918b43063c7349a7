package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateSpeakers(); err != nil {
		return err
	}
	if err := c.validateVoiceSamples(); err != nil {
		return err
	}
	if err := c.validateTiming(); err != nil {
		return err
	}
	if err := c.validateSynthesis(); err != nil {
		return err
	}
	if err := c.validateBackground(); err != nil {
		return err
	}
	if err := c.validateWhisperX(); err != nil {
		return err
	}
	if c.Staging.StaleHours < 0 {
		return errors.New("staging.stale_hours must be zero (disabled) or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.TimeoutSeconds <= 0 {
		return errors.New("transcode.timeout_seconds must be positive")
	}
	if c.Transcode.MaxInputMB <= 0 {
		return errors.New("transcode.max_input_mb must be positive")
	}
	return nil
}

func (c *Config) validateSpeakers() error {
	if c.Speakers.GapSeconds <= 0 {
		return errors.New("speakers.gap_seconds must be positive")
	}
	if c.Speakers.HeuristicSlots < 1 {
		return errors.New("speakers.heuristic_slots must be at least 1")
	}
	return nil
}

func (c *Config) validateVoiceSamples() error {
	if c.VoiceSamples.MinSeconds <= 0 {
		return errors.New("voice_samples.min_seconds must be positive")
	}
	if c.VoiceSamples.MaxSeconds < c.VoiceSamples.MinSeconds {
		return fmt.Errorf("voice_samples.max_seconds (%.1f) must be >= min_seconds (%.1f)", c.VoiceSamples.MaxSeconds, c.VoiceSamples.MinSeconds)
	}
	if c.VoiceSamples.SampleRate <= 0 {
		return errors.New("voice_samples.sample_rate must be positive")
	}
	return nil
}

func (c *Config) validateTiming() error {
	if c.Timing.WordsPerMinute <= 0 {
		return errors.New("timing.words_per_minute must be positive")
	}
	if c.Timing.MinSpeed <= 0 {
		return errors.New("timing.min_speed must be positive")
	}
	if c.Timing.MinSpeed > c.Timing.MaxSpeed {
		return fmt.Errorf("timing.min_speed (%.2f) must be <= max_speed (%.2f)", c.Timing.MinSpeed, c.Timing.MaxSpeed)
	}
	return nil
}

func (c *Config) validateSynthesis() error {
	switch c.Synthesis.Backend {
	case BackendXTTS, BackendEdge:
	default:
		return fmt.Errorf("synthesis.backend: unsupported value %q (want %q or %q)", c.Synthesis.Backend, BackendXTTS, BackendEdge)
	}
	if c.Synthesis.Backend == BackendXTTS && !c.VoiceSamples.Enabled {
		return fmt.Errorf("voice_samples.enabled must be true for the %q backend; use backend = %q to synthesize without samples", BackendXTTS, BackendEdge)
	}
	if c.Synthesis.Concurrency < 1 {
		return errors.New("synthesis.concurrency must be at least 1")
	}
	if c.Synthesis.TimeoutSeconds <= 0 {
		return errors.New("synthesis.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateBackground() error {
	switch c.Background.Mode {
	case BackgroundSeparated, BackgroundDucked:
	default:
		return fmt.Errorf("background.mode: unsupported value %q (want %q or %q)", c.Background.Mode, BackgroundSeparated, BackgroundDucked)
	}
	if c.Background.DuckDB > 0 {
		return errors.New("background.duck_db must be zero or negative")
	}
	if len(c.Background.SeparationModels) > 2 {
		return errors.New("background.separation_models supports at most two chained models")
	}
	if c.Background.TimeoutSeconds <= 0 {
		return errors.New("background.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateWhisperX() error {
	switch c.WhisperX.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("whisperx.vad_method: unsupported value %q", c.WhisperX.VADMethod)
	}
	if c.WhisperX.TimeoutSeconds <= 0 {
		return errors.New("whisperx.timeout_seconds must be positive")
	}
	return nil
}
