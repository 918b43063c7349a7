// Package pyannote diarizes audio with pyannote.audio run through uvx.
package pyannote

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"

	"redub/internal/services"
	"redub/internal/services/uvx"
	"redub/internal/transcript"
)

// DefaultModel is the diarization pipeline used when none is configured.
const DefaultModel = "pyannote/speaker-diarization-3.1"

const diarizeScript = `#!/usr/bin/env python3
import argparse
import json
import os
import sys
import warnings

warnings.filterwarnings("ignore", message=".*torchcodec.*")

import torch
import torchaudio
from pyannote.audio import Pipeline


def load_audio(path, sample_rate=16000):
    waveform, sr = torchaudio.load(path)
    if sr != sample_rate:
        waveform = torchaudio.transforms.Resample(sr, sample_rate)(waveform)
    if waveform.shape[0] > 1:
        waveform = waveform.mean(dim=0, keepdim=True)
    return {"waveform": waveform, "sample_rate": sample_rate}


def main():
    parser = argparse.ArgumentParser()
    parser.add_argument("--audio", required=True)
    parser.add_argument("--model", required=True)
    args = parser.parse_args()
    token = os.environ.get("HF_TOKEN") or os.environ.get("HUGGING_FACE_HUB_TOKEN")
    try:
        device = torch.device("cuda" if torch.cuda.is_available() else "cpu")
        pipeline = Pipeline.from_pretrained(args.model, token=token).to(device)
        result = pipeline(load_audio(args.audio))
        annotation = result.speaker_diarization if hasattr(result, "speaker_diarization") else result
        turns = []
        for turn, _, label in annotation.itertracks(yield_label=True):
            turns.append({"start": float(turn.start), "end": float(turn.end), "speaker": str(label)})
        print(json.dumps({"turns": turns}))
    except Exception as e:
        print(json.dumps({"error": str(e)}), file=sys.stderr)
        sys.exit(1)


if __name__ == "__main__":
    main()
`

var scriptPackages = []string{"pyannote.audio", "torchaudio", "soundfile", "omegaconf"}

// Diarizer runs the diarization pipeline. It satisfies speaker.Diarizer.
type Diarizer struct {
	Tool    uvx.Tool
	Model   string
	HFToken string
}

// New returns a diarizer.
func New(tool uvx.Tool, model, hfToken string) *Diarizer {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Diarizer{Tool: tool, Model: model, HFToken: strings.TrimSpace(hfToken)}
}

// Available reports whether diarization can run at all.
func (d *Diarizer) Available() error {
	if d.HFToken == "" {
		return services.Wrap(services.ErrUnavailable, "speakers", "diarize", "hugging face token not configured", nil)
	}
	if err := d.Tool.Available(); err != nil {
		return services.Wrap(services.ErrUnavailable, "speakers", "diarize", "", err)
	}
	return nil
}

// Diarize returns speaker turns ordered by start time. The script is staged
// next to the audio file and reads the token from HF_TOKEN.
func (d *Diarizer) Diarize(ctx context.Context, audioPath string) ([]transcript.Turn, error) {
	if d.HFToken == "" {
		return nil, services.Wrap(services.ErrUnavailable, "speakers", "diarize", "hugging face token not configured", nil)
	}
	result, err := d.Tool.RunScript(ctx, filepath.Dir(audioPath), "redub_diarize.py", diarizeScript, scriptPackages,
		[]string{"--audio", audioPath, "--model", d.Model},
		uvx.TorchEnv(d.HFToken),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrExternalTool, "speakers", "diarize", uvx.ScriptError(result, err), err)
	}
	return ParseTurns(result.Stdout)
}

// ParseTurns decodes the script's stdout. Turns with end <= start are dropped.
func ParseTurns(stdout []byte) ([]transcript.Turn, error) {
	var payload struct {
		Turns []transcript.Turn `json:"turns"`
		Error string            `json:"error"`
	}
	if err := json.Unmarshal(lastJSONLine(stdout), &payload); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "speakers", "diarize", "parse output", err)
	}
	if payload.Error != "" {
		return nil, services.Wrap(services.ErrExternalTool, "speakers", "diarize", payload.Error, nil)
	}
	turns := payload.Turns[:0]
	for _, turn := range payload.Turns {
		if turn.End > turn.Start {
			turns = append(turns, turn)
		}
	}
	sort.SliceStable(turns, func(i, j int) bool { return turns[i].Start < turns[j].Start })
	return turns, nil
}

// lastJSONLine tolerates library chatter printed before the result.
func lastJSONLine(stdout []byte) []byte {
	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "{") {
			return []byte(line)
		}
	}
	return stdout
}
