// Package deps reports whether the external tools and directories redub
// needs are present.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"redub/internal/config"
	"redub/internal/services/uvx"
)

// Requirement defines an external dependency redub relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries a configured install needs.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.Transcode.FFmpegBinary, Description: "Audio extraction, mixing, and muxing"},
		{Name: "FFprobe", Command: cfg.Transcode.FFprobeBinary, Description: "Media inspection"},
		{Name: "uvx", Command: uvx.Command, Description: "Runs TTS, diarization, separation, and WhisperX"},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch resolved, err := exec.LookPath(cmd); {
		case cmd == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
		default:
			status.Command = resolved
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}

// CheckDirectories reports whether the staging, log, and state directories
// exist and are writable.
func CheckDirectories(cfg *config.Config) []Status {
	dirs := []struct{ name, path string }{
		{"Staging dir", cfg.Paths.StagingDir},
		{"Log dir", cfg.Paths.LogDir},
		{"State dir", cfg.Paths.StateDir},
	}
	results := make([]Status, 0, len(dirs))
	for _, dir := range dirs {
		status := Status{Name: dir.name, Command: dir.path}
		info, err := os.Stat(dir.path)
		switch {
		case strings.TrimSpace(dir.path) == "":
			status.Detail = "not configured"
		case err != nil:
			status.Detail = "missing (created on first run)"
			status.Optional = true
		case !info.IsDir():
			status.Detail = "not a directory"
		case unix.Access(dir.path, unix.W_OK) != nil:
			status.Detail = "not writable"
		default:
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the required statuses that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			out = append(out, status)
		}
	}
	return out
}
