package dubbing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"redub/internal/media/ffprobe"
	"redub/internal/services"
	"redub/internal/transcript"
)

// SupportedExtensions lists the containers redub reads and writes.
var SupportedExtensions = []string{".mp4", ".mkv", ".avi", ".mov", ".webm"}

// Prober inspects a media file.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// IsSupported reports whether path has a supported container extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range SupportedExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// ValidateInputs rejects a job before any stage runs: the source must be a
// non-empty supported video within maxBytes, the output must be a distinct
// supported path, and the segments must carry translated text.
func ValidateInputs(ctx context.Context, job Job, maxBytes int64, prober Prober) error {
	video := strings.TrimSpace(job.VideoPath)
	if video == "" {
		return services.Wrap(services.ErrValidation, string(StageValidate), "source", "video path is required", nil)
	}
	info, err := os.Stat(video)
	if err != nil {
		if os.IsNotExist(err) {
			return services.Wrap(services.ErrNotFound, string(StageValidate), "source", video, err)
		}
		return services.Wrap(services.ErrValidation, string(StageValidate), "source", video, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, string(StageValidate), "source", video+" is a directory", nil)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrValidation, string(StageValidate), "source", video+" is empty", nil)
	}
	if !IsSupported(video) {
		return services.Wrap(services.ErrValidation, string(StageValidate), "source",
			fmt.Sprintf("unsupported format %q (supported: %s)", filepath.Ext(video), strings.Join(SupportedExtensions, " ")), nil)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return services.Wrap(services.ErrValidation, string(StageValidate), "source",
			fmt.Sprintf("file is %d MB, limit is %d MB", info.Size()>>20, maxBytes>>20), nil)
	}

	output := strings.TrimSpace(job.OutputPath)
	if output == "" {
		return services.Wrap(services.ErrValidation, string(StageValidate), "output", "output path is required", nil)
	}
	if !IsSupported(output) {
		return services.Wrap(services.ErrValidation, string(StageValidate), "output",
			fmt.Sprintf("unsupported format %q", filepath.Ext(output)), nil)
	}
	if sameFile(video, output) {
		return services.Wrap(services.ErrValidation, string(StageValidate), "output", "output must differ from the source video", nil)
	}

	if err := transcript.ValidateSegments(job.Segments); err != nil {
		return services.Wrap(services.ErrValidation, string(StageValidate), "segments", "", err)
	}

	if prober != nil {
		result, err := prober.Inspect(ctx, video)
		if err != nil {
			return services.Wrap(services.ErrValidation, string(StageValidate), "probe", "source is not readable media", err)
		}
		if result.VideoStreamCount() == 0 {
			return services.Wrap(services.ErrValidation, string(StageValidate), "probe", "source has no video stream", nil)
		}
		if result.AudioStreamCount() == 0 {
			return services.Wrap(services.ErrValidation, string(StageValidate), "probe", "source has no audio stream", nil)
		}
	}
	return nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}
