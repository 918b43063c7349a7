// Package remix lays synthesized clips over the background at their absolute
// start times and muxes the result with the source video.
package remix

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"redub/internal/logging"
	"redub/internal/services"
	"redub/internal/transcode"
	"redub/internal/transcript"
)

// Remixer mixes and muxes through a transcode.Tool.
type Remixer struct {
	tool    transcode.Tool
	workDir string
	logger  *slog.Logger
}

// NewRemixer returns a remixer writing into workDir.
func NewRemixer(tool transcode.Tool, workDir string, logger *slog.Logger) *Remixer {
	return &Remixer{tool: tool, workDir: workDir, logger: logging.NewComponentLogger(logger, "remix")}
}

// Remix returns the mixed audio path. With no clips the background path is
// returned unchanged.
func (r *Remixer) Remix(ctx context.Context, background transcript.BackgroundTrack, clips []transcript.Clip) (string, error) {
	if len(clips) == 0 {
		return background.AudioPath, nil
	}
	overlays := make([]transcode.Overlay, 0, len(clips))
	for i, clip := range clips {
		if clip.End <= clip.Start {
			return "", services.Wrap(services.ErrValidation, "remix", "mix", fmt.Sprintf("clip %d has end %.3f <= start %.3f", i, clip.End, clip.Start), nil)
		}
		overlays = append(overlays, transcode.Overlay{Path: clip.AudioPath, Start: clip.Start})
	}
	dest := filepath.Join(r.workDir, "mixed.wav")
	if err := r.tool.Mix(ctx, background.AudioPath, overlays, dest); err != nil {
		return "", err
	}
	logging.WithContext(ctx, r.logger).Info("clips mixed",
		logging.Int("clips", len(clips)),
		logging.String("background_mode", string(background.Mode)),
	)
	return dest, nil
}

// Mux copies the video stream of video and replaces its audio with audioPath.
func (r *Remixer) Mux(ctx context.Context, video, audioPath, dest string) error {
	if err := r.tool.Mux(ctx, video, audioPath, dest); err != nil {
		return err
	}
	logging.WithContext(ctx, r.logger).Info("audio muxed", logging.String("output", dest))
	return nil
}
