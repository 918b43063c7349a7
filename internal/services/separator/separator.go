// Package separator splits audio into vocal and instrumental stems with
// python-audio-separator run through uvx.
package separator

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"redub/internal/services"
	"redub/internal/services/uvx"
)

// DefaultModel is the MDX-Net instrumental model.
const DefaultModel = "UVR-MDX-NET-Inst_HQ_3.onnx"

// Separator runs audio-separator.
type Separator struct {
	Tool     uvx.Tool
	ModelDir string
}

// New returns a separator caching models under modelDir.
func New(tool uvx.Tool, modelDir string) *Separator {
	return &Separator{Tool: tool, ModelDir: modelDir}
}

// Available reports whether the separator can be launched.
func (s *Separator) Available() error {
	if err := s.Tool.Available(); err != nil {
		return services.Wrap(services.ErrUnavailable, "background", "separate", "", err)
	}
	return nil
}

// Separate writes vocals.wav and instrumental.wav into outDir.
func (s *Separator) Separate(ctx context.Context, audioPath, model, outDir string) (string, string, error) {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", "", services.Wrap(services.ErrConfiguration, "background", "separate", "create output dir", err)
	}
	args := []string{
		audioPath,
		"--model_filename", model,
		"--output_dir", outDir,
		"--output_format", "WAV",
	}
	if s.ModelDir != "" {
		args = append(args, "--model_file_dir", s.ModelDir)
	}
	from := "audio-separator[cpu]"
	if s.Tool.CUDA {
		from = "audio-separator[gpu]"
	}
	result, err := s.Tool.Run(ctx, uvx.Invocation{From: from, Tool: "audio-separator", Args: args})
	if err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		return "", "", services.Wrap(services.ErrExternalTool, "background", "separate", uvx.ScriptError(result, err), err)
	}

	vocals, err := claimStem(outDir, "(Vocals)", "vocals.wav")
	if err != nil {
		return "", "", err
	}
	instrumental, err := claimStem(outDir, "(Instrumental)", "instrumental.wav")
	if err != nil {
		return "", "", err
	}
	return vocals, instrumental, nil
}

// claimStem renames the stem audio-separator produced to a fixed name.
func claimStem(dir, marker, name string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "background", "separate", "read output dir", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), marker) {
			continue
		}
		target := filepath.Join(dir, name)
		if err := os.Rename(filepath.Join(dir, entry.Name()), target); err != nil {
			return "", services.Wrap(services.ErrExternalTool, "background", "separate", "rename stem", err)
		}
		return target, nil
	}
	return "", services.Wrap(services.ErrExternalTool, "background", "separate", "missing "+marker+" stem", nil)
}
