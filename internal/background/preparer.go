// Package background produces the track the dubbed speech is laid over.
//
// Separated mode strips vocals with one or more separation passes. Ducked
// mode attenuates the original audio, inside speech windows or across the
// whole track. Separation failures downgrade the job to ducked mode; they
// never fail it.
package background

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"redub/internal/logging"
	"redub/internal/services"
	"redub/internal/transcode"
	"redub/internal/transcript"
)

// ErrSeparationUnavailable reports that no separator is configured or usable.
var ErrSeparationUnavailable = errors.New("source separation unavailable")

// Separator splits audio into vocal and instrumental stems.
type Separator interface {
	Available() error
	Separate(ctx context.Context, audioPath, model, outDir string) (vocals, instrumental string, err error)
}

// Options configure a Preparer.
type Options struct {
	Mode     transcript.BackgroundMode
	DuckDB   float64
	Windowed bool
	Models   []string
	WorkDir  string
}

// Preparer builds a BackgroundTrack for one job.
type Preparer struct {
	tool      transcode.Tool
	separator Separator
	opts      Options
	logger    *slog.Logger
}

// NewPreparer returns a preparer. separator may be nil.
func NewPreparer(tool transcode.Tool, separator Separator, opts Options, logger *slog.Logger) *Preparer {
	if opts.Mode == "" {
		opts.Mode = transcript.BackgroundDucked
	}
	return &Preparer{tool: tool, separator: separator, opts: opts, logger: logging.NewComponentLogger(logger, "background")}
}

// Prepare returns the background for sourceAudio. clips supply the speech
// windows for windowed ducking.
func (p *Preparer) Prepare(ctx context.Context, sourceAudio string, clips []transcript.Clip) (transcript.BackgroundTrack, error) {
	logger := logging.WithContext(ctx, p.logger)
	if p.opts.Mode == transcript.BackgroundSeparated {
		track, err := p.separate(ctx, sourceAudio)
		if err == nil {
			logger.Info("background separated",
				logging.String("path", track.AudioPath),
				logging.Int("passes", p.passes()),
			)
			return track, nil
		}
		if ctx.Err() != nil {
			return transcript.BackgroundTrack{}, ctx.Err()
		}
		logging.WarnWithContext(logger, "separation failed; falling back to ducking", "background_downgraded",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check uvx and audio-separator, or set background.mode = \"ducked\""),
			logging.String(logging.FieldImpact, "original speech remains audible under the dub"),
		)
	}
	return p.duck(ctx, logger, sourceAudio, clips)
}

func (p *Preparer) passes() int {
	if len(p.opts.Models) == 0 {
		return 1
	}
	return len(p.opts.Models)
}

func (p *Preparer) separate(ctx context.Context, sourceAudio string) (transcript.BackgroundTrack, error) {
	if p.separator == nil {
		return transcript.BackgroundTrack{}, ErrSeparationUnavailable
	}
	if err := p.separator.Available(); err != nil {
		return transcript.BackgroundTrack{}, fmt.Errorf("%w: %w", ErrSeparationUnavailable, err)
	}
	models := p.opts.Models
	if len(models) == 0 {
		models = []string{""}
	}
	input := sourceAudio
	for i, model := range models {
		outDir := filepath.Join(p.opts.WorkDir, fmt.Sprintf("separation_pass%d", i+1))
		_, instrumental, err := p.separator.Separate(ctx, input, model, outDir)
		if err != nil {
			return transcript.BackgroundTrack{}, fmt.Errorf("pass %d: %w", i+1, err)
		}
		input = instrumental
	}
	return transcript.BackgroundTrack{AudioPath: input, Mode: transcript.BackgroundSeparated}, nil
}

func (p *Preparer) duck(ctx context.Context, logger *slog.Logger, sourceAudio string, clips []transcript.Clip) (transcript.BackgroundTrack, error) {
	var windows []transcode.Window
	if p.opts.Windowed {
		windows = SpeechWindows(clips)
		if len(windows) == 0 {
			logger.Info("no speech windows; background left untouched")
			return transcript.BackgroundTrack{AudioPath: sourceAudio, Mode: transcript.BackgroundDucked}, nil
		}
	}
	dest := filepath.Join(p.opts.WorkDir, "background_ducked.wav")
	if err := p.tool.Gain(ctx, sourceAudio, dest, p.opts.DuckDB, windows); err != nil {
		return transcript.BackgroundTrack{}, services.Wrap(services.ErrExternalTool, "background", "duck", "", err)
	}
	logger.Info("background ducked",
		logging.Float64("gain_db", p.opts.DuckDB),
		logging.Bool("windowed", p.opts.Windowed),
		logging.Int("windows", len(windows)),
	)
	return transcript.BackgroundTrack{AudioPath: dest, Mode: transcript.BackgroundDucked}, nil
}

// SpeechWindows returns the clip time ranges sorted and merged where they
// touch or overlap.
func SpeechWindows(clips []transcript.Clip) []transcode.Window {
	windows := make([]transcode.Window, 0, len(clips))
	for _, clip := range clips {
		if clip.End > clip.Start {
			windows = append(windows, transcode.Window{Start: clip.Start, End: clip.End})
		}
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })
	merged := windows[:0]
	for _, w := range windows {
		if n := len(merged); n > 0 && w.Start <= merged[n-1].End {
			if w.End > merged[n-1].End {
				merged[n-1].End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}
