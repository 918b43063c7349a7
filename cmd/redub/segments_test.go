package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"redub/internal/logging"
	"redub/internal/services"
	"redub/internal/services/whisperx"
	"redub/internal/testsupport"
	"redub/internal/transcript"
)

type fakeTranscriber struct {
	result    whisperx.Result
	err       error
	gotSource string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, source, outputDir, _ string) (whisperx.Result, error) {
	f.gotSource = source
	if _, err := os.Stat(source); err != nil {
		return whisperx.Result{}, err
	}
	if filepath.Dir(source) != outputDir {
		return whisperx.Result{}, errors.New("output dir should hold the extracted audio")
	}
	return f.result, f.err
}

type fakeTranslator struct {
	configured bool
	calls      int
	target     string
}

func (f *fakeTranslator) Configured() bool { return f.configured }

func (f *fakeTranslator) Translate(_ context.Context, segments []transcript.Segment, target string) ([]transcript.Segment, error) {
	f.calls++
	f.target = target
	out := make([]transcript.Segment, len(segments))
	for i, seg := range segments {
		out[i] = seg
		out[i].Translated = "[" + target + "] " + seg.Text
	}
	return out, nil
}

var sampleSegments = []transcript.Segment{
	{Start: 0, End: 2, Text: "Hello there, how are you doing today?"},
	{Start: 2, End: 4, Text: "I am fine, thank you very much for asking."},
}

func writeSegments(t *testing.T, lang string, segments []transcript.Segment) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "segments.json")
	if err := transcript.SaveSegments(path, lang, segments); err != nil {
		t.Fatalf("SaveSegments: %v", err)
	}
	return path
}

func TestPrepareUsesTranslatedFile(t *testing.T) {
	translated := []transcript.Segment{{Start: 0, End: 1, Text: "hi", Translated: "hola"}}
	tr := &fakeTranslator{configured: true}
	src := segmentSource{translator: tr, logger: logging.NewNop()}

	segments, lang, err := src.prepare(context.Background(), segmentRequest{File: writeSegments(t, "es", translated)})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if lang != "es" || len(segments) != 1 || segments[0].Translated != "hola" {
		t.Fatalf("unexpected result lang=%q segments=%+v", lang, segments)
	}
	if tr.calls != 0 {
		t.Fatal("translated segments must not be translated again")
	}
}

func TestPrepareTranslatesUntranslatedFile(t *testing.T) {
	tr := &fakeTranslator{configured: true}
	src := segmentSource{translator: tr, logger: logging.NewNop()}
	save := filepath.Join(t.TempDir(), "out.json")

	segments, lang, err := src.prepare(context.Background(), segmentRequest{
		File:       writeSegments(t, "en", sampleSegments),
		TargetLang: "German",
		SavePath:   save,
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if lang != "de" || tr.target != "de" {
		t.Fatalf("target = %q/%q, want de", lang, tr.target)
	}
	if segments[1].Translated != "[de] "+sampleSegments[1].Text {
		t.Fatalf("unexpected translation %q", segments[1].Translated)
	}
	saved, savedLang, err := transcript.LoadSegments(save)
	if err != nil {
		t.Fatalf("LoadSegments: %v", err)
	}
	if savedLang != "de" || len(saved) != 2 || saved[0].Translated == "" {
		t.Fatalf("saved segments not translated: lang=%q %+v", savedLang, saved)
	}
}

func TestPrepareSameLanguagePassthrough(t *testing.T) {
	tr := &fakeTranslator{}
	src := segmentSource{translator: tr, logger: logging.NewNop()}

	segments, _, err := src.prepare(context.Background(), segmentRequest{
		File:       writeSegments(t, "en", sampleSegments),
		TargetLang: "en",
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if tr.calls != 0 {
		t.Fatal("same-language input must not call the translator")
	}
	if segments[0].Translated != sampleSegments[0].Text {
		t.Fatalf("expected text copied to translation, got %q", segments[0].Translated)
	}
}

func TestPrepareErrors(t *testing.T) {
	tests := []struct {
		name   string
		req    segmentRequest
		marker error
	}{
		{"missing target", segmentRequest{SourceLang: "en"}, services.ErrValidation},
		{"unknown target", segmentRequest{SourceLang: "en", TargetLang: "klingon"}, services.ErrValidation},
		{"translator not configured", segmentRequest{SourceLang: "en", TargetLang: "fr"}, services.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.File = writeSegments(t, "", sampleSegments)
			src := segmentSource{translator: &fakeTranslator{}, logger: logging.NewNop()}
			_, _, err := src.prepare(context.Background(), tt.req)
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
		})
	}
}

func TestPrepareTranscribesWithoutSegmentFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	video := filepath.Join(testsupport.BaseDir(cfg), "input", "talk.mp4")
	testsupport.WriteTone(t, video, 16000, 2, 0.3)

	tool := testsupport.NewWavTool(16000)
	asr := &fakeTranscriber{result: whisperx.Result{Segments: sampleSegments, Language: "en"}}
	tr := &fakeTranslator{configured: true}
	src := segmentSource{
		tool:        tool,
		transcriber: asr,
		translator:  tr,
		stagingDir:  cfg.Paths.StagingDir,
		logger:      logging.NewNop(),
	}

	segments, lang, err := src.prepare(context.Background(), segmentRequest{JobID: "abc", VideoPath: video, TargetLang: "es"})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if lang != "es" || tr.calls != 1 || len(segments) != 2 {
		t.Fatalf("unexpected result lang=%q calls=%d segments=%d", lang, tr.calls, len(segments))
	}
	if tool.Calls("extract") != 1 {
		t.Fatalf("expected one extract call, got %d", tool.Calls("extract"))
	}
	if _, err := os.Stat(filepath.Dir(asr.gotSource)); !os.IsNotExist(err) {
		t.Fatalf("expected transcription work dir removed, stat err=%v", err)
	}
}
