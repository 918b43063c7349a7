package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"redub/internal/language"
	"redub/internal/logging"
	"redub/internal/services"
	"redub/internal/services/whisperx"
	"redub/internal/staging"
	"redub/internal/transcode"
	"redub/internal/transcript"
)

type transcriber interface {
	Transcribe(ctx context.Context, source, outputDir, language string) (whisperx.Result, error)
}

type translator interface {
	Configured() bool
	Translate(ctx context.Context, segments []transcript.Segment, targetLang string) ([]transcript.Segment, error)
}

// segmentSource produces translated segments for a video, either from a
// prepared file or by transcribing and translating the source audio.
type segmentSource struct {
	tool        transcode.Tool
	transcriber transcriber
	translator  translator
	stagingDir  string
	logger      *slog.Logger
}

type segmentRequest struct {
	JobID      string
	VideoPath  string
	File       string
	SourceLang string
	TargetLang string
	SavePath   string
}

// prepare returns translated segments and the target language.
func (s segmentSource) prepare(ctx context.Context, req segmentRequest) ([]transcript.Segment, string, error) {
	logger := logging.WithContext(ctx, s.logger)
	target := language.Normalize(req.TargetLang)
	if strings.TrimSpace(req.TargetLang) != "" && target == "" {
		return nil, "", services.Wrap(services.ErrValidation, "segments", "language", "unknown target language "+req.TargetLang, nil)
	}

	var (
		segments []transcript.Segment
		source   = language.Normalize(req.SourceLang)
	)
	if req.File != "" {
		loaded, hint, err := transcript.LoadSegments(req.File)
		if err != nil {
			return nil, "", services.Wrap(services.ErrValidation, "segments", "load", req.File, err)
		}
		segments = loaded
		if hasTranslations(segments) {
			if target == "" {
				target = language.Normalize(hint)
			}
			return s.save(req.SavePath, target, segments)
		}
		if source == "" {
			source = language.Normalize(hint)
		}
	} else {
		result, err := s.transcribe(ctx, req)
		if err != nil {
			return nil, "", err
		}
		segments = result.Segments
		if source == "" {
			source = result.Language
		}
	}

	if source == "" {
		source = language.Detect(sourceTexts(segments))
	}
	if target == "" {
		return nil, "", services.Wrap(services.ErrValidation, "segments", "language", "target language required (--lang)", nil)
	}
	if source == target {
		logger.Info("source already in target language; skipping translation",
			logging.String("language", target),
			logging.String(logging.FieldEventType, "translation_skipped"),
		)
		return s.save(req.SavePath, target, passthrough(segments))
	}
	if s.translator == nil || !s.translator.Configured() {
		return nil, "", services.Wrap(services.ErrConfiguration, "segments", "translate", "set llm.api_key or OPENROUTER_API_KEY, or pass translated --segments", nil)
	}
	translated, err := s.translator.Translate(ctx, segments, target)
	if err != nil {
		return nil, "", err
	}
	logger.Info("segments translated",
		logging.String("source_language", source),
		logging.String("target_language", target),
		logging.Int("segments", len(translated)),
		logging.String(logging.FieldEventType, "segments_translated"),
	)
	return s.save(req.SavePath, target, translated)
}

func (s segmentSource) transcribe(ctx context.Context, req segmentRequest) (whisperx.Result, error) {
	if s.transcriber == nil {
		return whisperx.Result{}, services.Wrap(services.ErrConfiguration, "segments", "transcribe", "no transcriber configured", nil)
	}
	workDir, err := staging.NewWorkDir(s.stagingDir, req.JobID+"-asr")
	if err != nil {
		return whisperx.Result{}, services.Wrap(services.ErrConfiguration, "segments", "work dir", "", err)
	}
	defer os.RemoveAll(workDir)

	audio := filepath.Join(workDir, "asr_audio.wav")
	if err := s.tool.ExtractAudio(ctx, req.VideoPath, audio); err != nil {
		return whisperx.Result{}, err
	}
	return s.transcriber.Transcribe(ctx, audio, workDir, language.Normalize(req.SourceLang))
}

func (s segmentSource) save(path, lang string, segments []transcript.Segment) ([]transcript.Segment, string, error) {
	if path != "" {
		if err := transcript.SaveSegments(path, lang, segments); err != nil {
			return nil, "", services.Wrap(services.ErrValidation, "segments", "save", path, err)
		}
	}
	return segments, lang, nil
}

func hasTranslations(segments []transcript.Segment) bool {
	for _, seg := range segments {
		if seg.SpeechText() != "" {
			return true
		}
	}
	return false
}

func passthrough(segments []transcript.Segment) []transcript.Segment {
	out := make([]transcript.Segment, len(segments))
	for i, seg := range segments {
		out[i] = seg
		out[i].Translated = strings.TrimSpace(seg.Text)
	}
	return out
}

func sourceTexts(segments []transcript.Segment) []string {
	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		texts = append(texts, seg.Text)
	}
	return texts
}
