package separator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"redub/internal/process"
	"redub/internal/services"
	"redub/internal/services/uvx"
)

func stemWriter(t *testing.T, stems ...string) (uvx.Tool, *[]string) {
	t.Helper()
	var captured []string
	tool := uvx.Tool{Exec: func(_ context.Context, cmd process.Command) (*process.Result, error) {
		captured = cmd.Args
		idx := slices.Index(cmd.Args, "--output_dir")
		dir := cmd.Args[idx+1]
		for _, stem := range stems {
			name := "mix_" + stem + "_UVR-MDX-NET-Inst_HQ_3.wav"
			if err := os.WriteFile(filepath.Join(dir, name), []byte("RIFF"), 0o644); err != nil {
				t.Fatalf("write stem: %v", err)
			}
		}
		return &process.Result{}, nil
	}}
	return tool, &captured
}

func TestSeparate(t *testing.T) {
	out := filepath.Join(t.TempDir(), "pass1")
	tool, args := stemWriter(t, "(Vocals)", "(Instrumental)")
	sep := New(tool, "/models")

	vocals, instrumental, err := sep.Separate(context.Background(), "/work/mix.wav", "", out)
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if vocals != filepath.Join(out, "vocals.wav") || instrumental != filepath.Join(out, "instrumental.wav") {
		t.Fatalf("stems = %q %q", vocals, instrumental)
	}
	for _, path := range []string{vocals, instrumental} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("stem missing: %v", err)
		}
	}
	for _, want := range []string{DefaultModel, "audio-separator[cpu]", "/models", "/work/mix.wav"} {
		if !slices.Contains(*args, want) {
			t.Fatalf("args missing %q: %v", want, *args)
		}
	}
}

func TestSeparateMissingStem(t *testing.T) {
	tool, _ := stemWriter(t, "(Vocals)")
	_, _, err := New(tool, "").Separate(context.Background(), "/work/mix.wav", "model.onnx", t.TempDir())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("err = %v, want ErrExternalTool", err)
	}
}

func TestSeparateToolFailure(t *testing.T) {
	tool := uvx.Tool{Exec: func(_ context.Context, _ process.Command) (*process.Result, error) {
		return &process.Result{Stderr: []byte("ModuleNotFoundError: No module named 'onnxruntime'")}, errors.New("exit status 1")
	}}
	_, _, err := New(tool, "").Separate(context.Background(), "/work/mix.wav", "", t.TempDir())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("err = %v, want ErrExternalTool", err)
	}
}
