package tts

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"redub/internal/services"
	"redub/internal/services/uvx"
	"redub/internal/synthesis"
)

// Edge synthesizes with Microsoft Edge neural voices via edge-tts.
type Edge struct {
	Tool uvx.Tool
}

// NewEdge returns an edge-tts backend.
func NewEdge(tool uvx.Tool) *Edge {
	return &Edge{Tool: tool}
}

// ClonesVoices is false; Edge picks a stock voice per speaker.
func (e *Edge) ClonesVoices() bool { return false }

// Synthesize writes an MP3 next to req.OutputPath and returns its path.
func (e *Edge) Synthesize(ctx context.Context, req synthesis.Request) (string, error) {
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = VoiceFor(req.Language, req.SpeakerID)
	}
	output := strings.TrimSuffix(req.OutputPath, filepath.Ext(req.OutputPath)) + ".mp3"
	result, err := e.Tool.Run(ctx, uvx.Invocation{
		Tool: "edge-tts",
		Args: []string{
			"--text", req.Text,
			"--voice", voice,
			"--rate=" + EdgeRate(req.SpeedFactor),
			"--write-media", output,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", services.Wrap(services.ErrExternalTool, "synthesize", "edge-tts", uvx.ScriptError(result, err), err)
	}
	if info, statErr := os.Stat(output); statErr != nil || info.Size() == 0 {
		return "", services.Wrap(services.ErrExternalTool, "synthesize", "edge-tts", "no audio written", statErr)
	}
	return output, nil
}
