// Package uvx runs Python tooling through uv's ephemeral environments.
//
// Collaborators that need a Python package (pyannote, coqui-tts,
// audio-separator, edge-tts) go through Tool so they share the same CUDA
// index handling, process-group kill semantics, and error extraction.
package uvx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"redub/internal/process"
)

// Command is the uv tool runner binary.
const Command = "uvx"

const (
	cudaIndexURL = "https://download.pytorch.org/whl/cu128"
	pypiIndexURL = "https://pypi.org/simple"
)

// ErrMissing reports that the uvx binary is not installed.
var ErrMissing = errors.New("uvx not found on PATH")

// Executor runs one subprocess. Tests replace it.
type Executor func(ctx context.Context, cmd process.Command) (*process.Result, error)

// Tool invokes uvx.
type Tool struct {
	Binary  string
	CUDA    bool
	Timeout time.Duration
	Exec    Executor
}

// Available reports whether the uvx binary can be found.
func (t Tool) Available() error {
	if _, err := exec.LookPath(t.binary()); err != nil {
		return fmt.Errorf("%w: %v", ErrMissing, err)
	}
	return nil
}

// Invocation is one uvx call: `uvx [--from From] [--with W]... Tool Args...`.
type Invocation struct {
	From string
	With []string
	Tool string
	Args []string
	Env  []string
}

// Run executes the invocation and returns the captured result.
func (t Tool) Run(ctx context.Context, inv Invocation) (*process.Result, error) {
	args := []string{"--quiet"}
	if inv.From != "" {
		args = append(args, "--from", inv.From)
	}
	for _, pkg := range inv.With {
		args = append(args, "--with", pkg)
	}
	if t.CUDA {
		args = append(args, "--index-url", cudaIndexURL, "--extra-index-url", pypiIndexURL)
	}
	args = append(args, inv.Tool)
	args = append(args, inv.Args...)
	run := t.Exec
	if run == nil {
		run = process.Run
	}
	return run(ctx, process.Command{
		Binary:  t.binary(),
		Args:    args,
		Env:     inv.Env,
		Timeout: t.Timeout,
	})
}

// RunScript writes script into workDir and runs it under python with the
// given packages installed. The script file is removed afterwards.
func (t Tool) RunScript(ctx context.Context, workDir, name, script string, packages, args, env []string) (*process.Result, error) {
	scriptPath := filepath.Join(workDir, name)
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", name, err)
	}
	defer os.Remove(scriptPath)
	return t.Run(ctx, Invocation{
		With: packages,
		Tool: "python",
		Args: append([]string{scriptPath}, args...),
		Env:  env,
	})
}

func (t Tool) binary() string {
	if strings.TrimSpace(t.Binary) == "" {
		return Command
	}
	return t.Binary
}

// TorchEnv returns the environment used for torch-based scripts.
func TorchEnv(hfToken string) []string {
	env := []string{}
	if token := strings.TrimSpace(hfToken); token != "" {
		env = append(env, "HF_TOKEN="+token)
	}
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		env = append(env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	return env
}

// ScriptError distills a failed script run into a short message. Scripts
// report failures as a JSON object {"error": "..."} on stderr; otherwise the
// last Python exception line is used.
func ScriptError(result *process.Result, err error) string {
	if result == nil {
		if err != nil {
			return err.Error()
		}
		return "unknown failure"
	}
	stderr := strings.TrimSpace(string(result.Stderr))
	for _, line := range reverseLines(stderr) {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal([]byte(line), &payload) == nil && payload.Error != "" {
			return payload.Error
		}
	}
	if strings.Contains(stderr, "GatedRepoError") || strings.Contains(stderr, "401 Client Error") {
		return "Hugging Face model access denied; accept the model terms on hf.co and check the token"
	}
	if idx := strings.LastIndex(stderr, "Error:"); idx != -1 {
		return lastLine(stderr[idx:])
	}
	if lines := reverseLines(stderr); len(lines) > 0 {
		return lines[0]
	}
	if err != nil {
		return err.Error()
	}
	return "unknown failure"
}

func reverseLines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(raw[i]); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func lastLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "\n"); idx != -1 {
		return strings.TrimSpace(text[:idx])
	}
	return text
}
