// Package process runs external tools as bounded, killable subprocesses.
//
// Every child is placed in its own process group so a timeout or job
// cancellation terminates the whole tree (uvx wrappers spawn python children).
// SIGTERM goes first, SIGKILL follows after the grace period.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// ErrTimeout marks a subprocess that exceeded its time bound.
var ErrTimeout = errors.New("process timed out")

const (
	defaultGracePeriod = 5 * time.Second
	diagnosticLimit    = 2048
)

// Command describes one subprocess invocation.
type Command struct {
	Binary      string
	Args        []string
	Dir         string
	Env         []string
	Timeout     time.Duration
	GracePeriod time.Duration
}

// Result captures the subprocess outcome.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Run executes a subprocess and waits for it to complete. When Timeout is set
// the call is bounded and a hang surfaces as ErrTimeout.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, errors.New("process: binary is required")
	}

	gracePeriod := cmd.GracePeriod
	if gracePeriod == 0 {
		gracePeriod = defaultGracePeriod
	}

	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(runCtx, cmd.Binary, cmd.Args...) //nolint:gosec
	c.Dir = cmd.Dir
	c.Env = mergeEnv(cmd.Env)

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return unix.Kill(-c.Process.Pid, unix.SIGTERM)
	}
	c.WaitDelay = gracePeriod

	start := time.Now()
	err := c.Run()
	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: c.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}
	if err == nil {
		return result, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return result, fmt.Errorf("%s: %w after %s", cmd.Binary, ErrTimeout, cmd.Timeout)
	}
	if ctx.Err() != nil {
		return result, fmt.Errorf("%s: killed by context: %w", cmd.Binary, ctx.Err())
	}
	if diag := Diagnostic(result); diag != "" {
		return result, fmt.Errorf("%s: exit code %d: %w: %s", cmd.Binary, result.ExitCode, err, diag)
	}
	return result, fmt.Errorf("%s: exit code %d: %w", cmd.Binary, result.ExitCode, err)
}

// Diagnostic returns the tail of stderr (or stdout when stderr is empty).
func Diagnostic(result *Result) string {
	if result == nil {
		return ""
	}
	text := strings.TrimSpace(string(result.Stderr))
	if text == "" {
		text = strings.TrimSpace(string(result.Stdout))
	}
	if len(text) > diagnosticLimit {
		text = "..." + text[len(text)-diagnosticLimit:]
	}
	return text
}

func mergeEnv(extra []string) []string {
	if len(extra) == 0 {
		return nil
	}
	env := os.Environ()
	return append(env, extra...)
}
