package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"redub/internal/services"
	"redub/internal/services/uvx"
	"redub/internal/synthesis"
)

// DefaultXTTSModel is the Coqui model name used when none is configured.
const DefaultXTTSModel = "tts_models/multilingual/multi-dataset/xtts_v2"

const xttsScript = `#!/usr/bin/env python3
import argparse
import json
import sys

import torch
from TTS.api import TTS


def main():
    parser = argparse.ArgumentParser()
    parser.add_argument("--model", required=True)
    parser.add_argument("--text", required=True)
    parser.add_argument("--speaker-wav", required=True)
    parser.add_argument("--language", required=True)
    parser.add_argument("--speed", type=float, default=1.0)
    parser.add_argument("--out", required=True)
    args = parser.parse_args()
    try:
        device = "cuda" if torch.cuda.is_available() else "cpu"
        tts = TTS(args.model).to(device)
        tts.tts_to_file(
            text=args.text,
            speaker_wav=args.speaker_wav,
            language=args.language,
            file_path=args.out,
            speed=args.speed,
        )
        print(json.dumps({"output": args.out}))
    except Exception as e:
        print(json.dumps({"error": str(e)}), file=sys.stderr)
        sys.exit(1)


if __name__ == "__main__":
    main()
`

var xttsPackages = []string{"coqui-tts", "torchaudio"}

// XTTS clones voices with Coqui XTTS v2.
type XTTS struct {
	Tool  uvx.Tool
	Model string
}

// NewXTTS returns an XTTS backend.
func NewXTTS(tool uvx.Tool, model string) *XTTS {
	if strings.TrimSpace(model) == "" {
		model = DefaultXTTSModel
	}
	return &XTTS{Tool: tool, Model: model}
}

// ClonesVoices is true; every request needs a reference sample.
func (x *XTTS) ClonesVoices() bool { return true }

// Synthesize renders req.Text in the voice of req.SamplePath.
func (x *XTTS) Synthesize(ctx context.Context, req synthesis.Request) (string, error) {
	if strings.TrimSpace(req.SamplePath) == "" {
		return "", services.Wrap(services.ErrValidation, "synthesize", "xtts", "voice sample required", nil)
	}
	workDir := filepath.Dir(req.OutputPath)
	scriptName := fmt.Sprintf("redub_xtts_%s.py", strings.TrimSuffix(filepath.Base(req.OutputPath), filepath.Ext(req.OutputPath)))
	result, err := x.Tool.RunScript(ctx, workDir, scriptName, xttsScript, xttsPackages,
		[]string{
			"--model", x.Model,
			"--text", req.Text,
			"--speaker-wav", req.SamplePath,
			"--language", XTTSLanguage(req.Language),
			"--speed", fmt.Sprintf("%.3f", req.SpeedFactor),
			"--out", req.OutputPath,
		},
		append(uvx.TorchEnv(""), "COQUI_TOS_AGREED=1"),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", services.Wrap(services.ErrExternalTool, "synthesize", "xtts", uvx.ScriptError(result, err), err)
	}
	if info, statErr := os.Stat(req.OutputPath); statErr != nil || info.Size() == 0 {
		return "", services.Wrap(services.ErrExternalTool, "synthesize", "xtts", "no audio written", statErr)
	}
	return req.OutputPath, nil
}
