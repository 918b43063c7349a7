package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"redub/internal/logging"
	"redub/internal/process"
)

// ErrTimeout marks an ffmpeg invocation that exceeded its time bound.
var ErrTimeout = process.ErrTimeout

// Runner executes one transcoder invocation that is expected to produce output.
type Runner interface {
	Run(ctx context.Context, output string, args []string) (string, error)
}

// ExecRunner runs the transcoder binary as a bounded subprocess.
type ExecRunner struct {
	Binary  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewExecRunner constructs a runner for the given binary.
func NewExecRunner(binary string, timeout time.Duration, logger *slog.Logger) *ExecRunner {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &ExecRunner{Binary: binary, Timeout: timeout, Logger: logger}
}

// Run executes the binary and verifies the output file exists and is non-empty.
func (r *ExecRunner) Run(ctx context.Context, output string, args []string) (string, error) {
	logger := logging.WithContext(ctx, r.Logger)
	logger.Debug("transcoder invocation",
		logging.String("binary", r.Binary),
		logging.String("args", strings.Join(args, " ")),
	)
	result, err := process.Run(ctx, process.Command{
		Binary:  r.Binary,
		Args:    args,
		Timeout: r.Timeout,
	})
	if err != nil {
		return "", err
	}
	info, statErr := os.Stat(output)
	if statErr != nil {
		return "", fmt.Errorf("%s produced no output at %s: %w", r.Binary, output, statErr)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("%s produced an empty file at %s", r.Binary, output)
	}
	logger.Debug("transcoder finished",
		logging.String("output", output),
		logging.Duration("elapsed", result.Duration),
	)
	return output, nil
}
