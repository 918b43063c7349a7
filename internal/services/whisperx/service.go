package whisperx

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	langpkg "redub/internal/language"
	"redub/internal/services"
	"redub/internal/services/uvx"
	"redub/internal/transcript"
)

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg  Config
	tool uvx.Tool
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, tool uvx.Tool) *Service {
	tool.CUDA = cfg.CUDAEnabled
	return &Service{cfg: cfg.withDefaults(), tool: tool}
}

// Result is a finished transcription.
type Result struct {
	Segments []transcript.Segment
	// Language is the ISO 639-1 code WhisperX detected, or the requested one.
	Language string
	JSONPath string
}

// Transcribe runs WhisperX on source and loads its segments. language may
// be empty to let WhisperX detect it. outputDir defaults to the source dir.
func (s *Service) Transcribe(ctx context.Context, source, outputDir, language string) (Result, error) {
	var result Result
	if source == "" {
		return result, services.Wrap(services.ErrValidation, "transcribe", "whisperx", "source path required", nil)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return result, fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	res, err := s.tool.Run(ctx, uvx.Invocation{
		Tool: "whisperx",
		Args: s.buildArgs(source, outputDir, language),
		Env:  uvx.TorchEnv(s.cfg.HFToken),
	})
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "transcribe", "whisperx", uvx.ScriptError(res, err), err)
	}

	baseName := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	result.JSONPath = filepath.Join(outputDir, baseName+".json")
	payload, err := loadPayload(result.JSONPath)
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "transcribe", "read output", "", err)
	}
	result.Segments = payload.transcriptSegments()
	result.Language = langpkg.Normalize(payload.Language)
	if result.Language == "" {
		result.Language = langpkg.Normalize(language)
	}
	if len(result.Segments) == 0 {
		return result, services.Wrap(services.ErrValidation, "transcribe", "whisperx", "no speech found", transcript.ErrNoSegments)
	}
	return result, nil
}

// buildArgs constructs the whisperx arguments that follow the tool name.
func (s *Service) buildArgs(source, outputDir, language string) []string {
	args := []string{source, "--model", s.cfg.Model, "--output_dir", outputDir}
	args = append(args, decodeFlags...)
	args = append(args, "--vad_method", s.cfg.VADMethod)
	if lang := langpkg.Normalize(language); lang != "" {
		args = append(args, "--language", lang)
	}
	return append(args, s.cfg.deviceFlags()...)
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Score float64 `json:"avg_logprob"`
}

// payload is the JSON structure from WhisperX output.
type payload struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}

func loadPayload(jsonPath string) (payload, error) {
	var p payload
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse whisperx json: %w", err)
	}
	return p, nil
}

// transcriptSegments drops empty and zero-length segments.
func (p payload) transcriptSegments() []transcript.Segment {
	out := make([]transcript.Segment, 0, len(p.Segments))
	for _, seg := range p.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" || seg.End <= seg.Start {
			continue
		}
		out = append(out, transcript.Segment{Start: seg.Start, End: seg.End, Text: text})
	}
	return out
}
