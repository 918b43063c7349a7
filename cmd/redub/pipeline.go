package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"redub/internal/config"
	"redub/internal/dubbing"
	"redub/internal/jobstore"
	"redub/internal/logging"
	"redub/internal/media/ffprobe"
	"redub/internal/media/wavinfo"
	"redub/internal/services/llm"
	"redub/internal/services/pyannote"
	"redub/internal/services/separator"
	"redub/internal/services/tts"
	"redub/internal/services/uvx"
	"redub/internal/services/whisperx"
	"redub/internal/synthesis"
	"redub/internal/transcode"
)

// buildDependencies wires the production collaborators for one run.
func buildDependencies(cfg *config.Config, store *jobstore.Store, logger *slog.Logger) dubbing.Dependencies {
	prober := ffprobe.Prober{Binary: cfg.Transcode.FFprobeBinary, Timeout: cfg.TranscodeTimeout()}
	runner := transcode.NewExecRunner(cfg.Transcode.FFmpegBinary, cfg.TranscodeTimeout(), logger)

	deps := dubbing.Dependencies{
		Tool:        transcode.NewFFmpeg(runner, cfg.VoiceSamples.SampleRate),
		Prober:      prober,
		Synthesizer: newSynthesizer(cfg),
		Separator: separator.New(
			uvx.Tool{CUDA: cfg.WhisperX.CUDAEnabled, Timeout: cfg.SeparationTimeout()},
			filepath.Join(cfg.Paths.StateDir, "models"),
		),
		Measure: func(path string) (float64, error) {
			if strings.EqualFold(filepath.Ext(path), ".wav") {
				info, err := wavinfo.Probe(path)
				return info.Duration, err
			}
			info, err := prober.AudioInfo(context.Background(), path)
			return info.Duration, err
		},
	}
	if store != nil {
		deps.Recorder = storeRecorder{store: store}
	}
	if cfg.Speakers.Diarization && cfg.Speakers.HFToken != "" {
		deps.Diarizer = pyannote.New(
			uvx.Tool{CUDA: cfg.WhisperX.CUDAEnabled, Timeout: cfg.SeparationTimeout()},
			cfg.Speakers.Model,
			cfg.Speakers.HFToken,
		)
	} else if cfg.Speakers.Diarization {
		logger.Info("diarization disabled: no Hugging Face token",
			logging.String(logging.FieldEventType, "diarization_disabled"),
			logging.String(logging.FieldErrorHint, "set speakers.hf_token or HF_TOKEN"),
		)
	}
	return deps
}

func newSynthesizer(cfg *config.Config) synthesis.Synthesizer {
	tool := uvx.Tool{CUDA: cfg.WhisperX.CUDAEnabled, Timeout: cfg.SynthesisTimeout()}
	if cfg.Synthesis.Backend == config.BackendEdge {
		return tts.NewEdge(tool)
	}
	return tts.NewXTTS(tool, cfg.Synthesis.XTTSModel)
}

func newTranscriber(cfg *config.Config) *whisperx.Service {
	return whisperx.NewService(whisperx.Config{
		Model:       cfg.WhisperX.Model,
		CUDAEnabled: cfg.WhisperX.CUDAEnabled,
		VADMethod:   cfg.WhisperX.VADMethod,
		HFToken:     cfg.Speakers.HFToken,
	}, uvx.Tool{Timeout: cfg.TranscriptionTimeout()})
}

func newTranslator(cfg *config.Config) *llm.Client {
	return llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
}
