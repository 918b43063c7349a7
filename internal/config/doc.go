// Package config loads, normalizes, and validates redub configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// HF_TOKEN and OPENROUTER_API_KEY. The Config type centralizes every knob the
// dubbing pipeline and CLI need: transcoder binaries and timeouts, speaker
// detection, voice-sample curation, timing bounds, synthesis backends, and the
// background strategy.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical modes, and clear validation errors.
package config
