package background_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"redub/internal/background"
	"redub/internal/logging"
	"redub/internal/media/wavinfo"
	"redub/internal/testsupport"
	"redub/internal/transcode"
	"redub/internal/transcript"
)

const rate = 8000

type fakeSeparator struct {
	unavailable error
	failPass    int
	calls       []string
}

func (f *fakeSeparator) Available() error { return f.unavailable }

func (f *fakeSeparator) Separate(_ context.Context, audioPath, model, outDir string) (string, string, error) {
	f.calls = append(f.calls, model+"<"+filepath.Base(audioPath))
	if f.failPass == len(f.calls) {
		return "", "", errors.New("separation crashed")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", "", err
	}
	vocals := filepath.Join(outDir, "vocals.wav")
	instrumental := filepath.Join(outDir, "instrumental.wav")
	for _, path := range []string{vocals, instrumental} {
		data, err := os.ReadFile(audioPath)
		if err != nil {
			return "", "", err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", "", err
		}
	}
	return vocals, instrumental, nil
}

func setup(t *testing.T) (string, string, *testsupport.WavTool) {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "source.wav")
	testsupport.WriteTone(t, source, rate, 6, 0.5)
	return dir, source, testsupport.NewWavTool(rate)
}

func TestPrepareSeparatedChain(t *testing.T) {
	dir, source, tool := setup(t)
	sep := &fakeSeparator{}
	prep := background.NewPreparer(tool, sep, background.Options{
		Mode:    transcript.BackgroundSeparated,
		Models:  []string{"first.onnx", "second.ckpt"},
		WorkDir: dir,
	}, logging.NewNop())

	track, err := prep.Prepare(context.Background(), source, nil)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if track.Mode != transcript.BackgroundSeparated {
		t.Fatalf("mode = %q, want separated", track.Mode)
	}
	want := []string{"first.onnx<source.wav", "second.ckpt<instrumental.wav"}
	if len(sep.calls) != 2 || sep.calls[0] != want[0] || sep.calls[1] != want[1] {
		t.Fatalf("calls = %v, want %v", sep.calls, want)
	}
	if track.AudioPath != filepath.Join(dir, "separation_pass2", "instrumental.wav") {
		t.Fatalf("path = %q", track.AudioPath)
	}
}

func TestPrepareSeparationFailureDowngrades(t *testing.T) {
	tests := []struct {
		name string
		sep  background.Separator
	}{
		{name: "raises on call", sep: &fakeSeparator{failPass: 1}},
		{name: "second pass fails", sep: &fakeSeparator{failPass: 2}},
		{name: "unavailable", sep: &fakeSeparator{unavailable: errors.New("uvx missing")}},
		{name: "not configured", sep: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, source, tool := setup(t)
			prep := background.NewPreparer(tool, tt.sep, background.Options{
				Mode:    transcript.BackgroundSeparated,
				Models:  []string{"a.onnx", "b.onnx"},
				DuckDB:  -20,
				WorkDir: dir,
			}, logging.NewNop())
			track, err := prep.Prepare(context.Background(), source, nil)
			if err != nil {
				t.Fatalf("Prepare: %v", err)
			}
			if track.Mode != transcript.BackgroundDucked {
				t.Fatalf("mode = %q, want ducked", track.Mode)
			}
			if tool.Calls("gain") != 1 {
				t.Fatalf("gain calls = %d", tool.Calls("gain"))
			}
		})
	}
}

func TestPrepareUniformDuck(t *testing.T) {
	dir, source, tool := setup(t)
	prep := background.NewPreparer(tool, nil, background.Options{
		Mode:    transcript.BackgroundDucked,
		DuckDB:  -20,
		WorkDir: dir,
	}, logging.NewNop())
	track, err := prep.Prepare(context.Background(), source, []transcript.Clip{{Start: 0, End: 1}})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	before, _ := wavinfo.RMS(source)
	after, err := wavinfo.RMS(track.AudioPath)
	if err != nil {
		t.Fatalf("RMS: %v", err)
	}
	ratio := after / before
	if ratio < 0.09 || ratio > 0.11 {
		t.Fatalf("rms ratio = %v, want ~0.1", ratio)
	}
	info, _ := wavinfo.Probe(track.AudioPath)
	if info.Duration < 5.99 {
		t.Fatalf("duration = %v, want full track", info.Duration)
	}
}

func TestPrepareWindowedDuck(t *testing.T) {
	dir, source, tool := setup(t)
	prep := background.NewPreparer(tool, nil, background.Options{
		Mode:     transcript.BackgroundDucked,
		DuckDB:   -20,
		Windowed: true,
		WorkDir:  dir,
	}, logging.NewNop())
	clips := []transcript.Clip{{Start: 0, End: 3}}
	track, err := prep.Prepare(context.Background(), source, clips)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	head := filepath.Join(dir, "head.wav")
	tail := filepath.Join(dir, "tail.wav")
	if err := tool.Slice(context.Background(), track.AudioPath, 0.5, 2, head); err != nil {
		t.Fatalf("slice head: %v", err)
	}
	if err := tool.Slice(context.Background(), track.AudioPath, 3.5, 2, tail); err != nil {
		t.Fatalf("slice tail: %v", err)
	}
	headRMS, _ := wavinfo.RMS(head)
	tailRMS, _ := wavinfo.RMS(tail)
	if headRMS >= tailRMS/5 {
		t.Fatalf("speech window not ducked: head=%v tail=%v", headRMS, tailRMS)
	}
}

func TestPrepareWindowedWithoutClips(t *testing.T) {
	dir, source, tool := setup(t)
	prep := background.NewPreparer(tool, nil, background.Options{Windowed: true, DuckDB: -20, WorkDir: dir}, logging.NewNop())
	track, err := prep.Prepare(context.Background(), source, nil)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if track.AudioPath != source || tool.Calls("gain") != 0 {
		t.Fatalf("track = %+v, gain calls = %d", track, tool.Calls("gain"))
	}
}

func TestPrepareDuckFailure(t *testing.T) {
	dir, source, tool := setup(t)
	tool.FailOn("gain", errors.New("ffmpeg died"))
	prep := background.NewPreparer(tool, nil, background.Options{DuckDB: -20, WorkDir: dir}, logging.NewNop())
	if _, err := prep.Prepare(context.Background(), source, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestSpeechWindows(t *testing.T) {
	clips := []transcript.Clip{
		{Start: 5, End: 7},
		{Start: 0, End: 2},
		{Start: 1.5, End: 3},
		{Start: 7, End: 8},
		{Start: 9, End: 9},
	}
	got := background.SpeechWindows(clips)
	want := []transcode.Window{{Start: 0, End: 3}, {Start: 5, End: 8}}
	if len(got) != len(want) {
		t.Fatalf("windows = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("windows = %+v, want %+v", got, want)
		}
	}
}
