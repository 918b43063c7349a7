// Package voicesample curates per-speaker reference recordings for voice
// cloning. It owns slice selection, ordering, and the lifecycle of the
// scratch files it creates; the actual cutting and joining is delegated to
// the transcoder.
package voicesample

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"redub/internal/logging"
	"redub/internal/transcode"
	"redub/internal/transcript"
)

// ErrInsufficientMaterial reports a speaker whose segments cannot reach the
// minimum sample duration even when combined.
var ErrInsufficientMaterial = errors.New("insufficient voice sample material")

const durationEpsilon = 1e-6

// Curator builds voice samples inside a job work directory.
type Curator struct {
	tool       transcode.Tool
	workDir    string
	minSeconds float64
	maxSeconds float64
	logger     *slog.Logger
}

// NewCurator returns a curator writing into workDir.
func NewCurator(tool transcode.Tool, workDir string, minSeconds, maxSeconds float64, logger *slog.Logger) *Curator {
	if maxSeconds < minSeconds {
		maxSeconds = minSeconds
	}
	return &Curator{
		tool:       tool,
		workDir:    workDir,
		minSeconds: minSeconds,
		maxSeconds: maxSeconds,
		logger:     logging.NewComponentLogger(logger, "voicesample"),
	}
}

// Plan is the ordered list of slices that make up one sample.
type Plan struct {
	Slices []transcode.Window
	Total  float64
}

// PlanSample selects slices for a sample. A single segment at least
// minSeconds long wins outright and is cut to at most maxSeconds. Otherwise
// segments are taken in start order, each capped to the duration still
// needed, until the minimum is reached.
func PlanSample(segments []transcript.Segment, minSeconds, maxSeconds float64) (Plan, error) {
	ordered := make([]transcript.Segment, 0, len(segments))
	for _, seg := range segments {
		if seg.Duration() > 0 {
			ordered = append(ordered, seg)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	for _, seg := range ordered {
		if seg.Duration()+durationEpsilon >= minSeconds {
			length := math.Min(seg.Duration(), maxSeconds)
			return Plan{Slices: []transcode.Window{{Start: seg.Start, End: seg.Start + length}}, Total: length}, nil
		}
	}

	var plan Plan
	for _, seg := range ordered {
		remaining := minSeconds - plan.Total
		if remaining <= durationEpsilon {
			break
		}
		take := math.Min(seg.Duration(), remaining)
		plan.Slices = append(plan.Slices, transcode.Window{Start: seg.Start, End: seg.Start + take})
		plan.Total += take
	}
	if plan.Total+durationEpsilon < minSeconds {
		return Plan{}, fmt.Errorf("%w: %.2fs available, %.2fs required", ErrInsufficientMaterial, plan.Total, minSeconds)
	}
	return plan, nil
}

// Curate produces a sample for one speaker from sourceAudio.
func (c *Curator) Curate(ctx context.Context, speakerID string, segments []transcript.Segment, sourceAudio string) (transcript.VoiceSample, error) {
	plan, err := PlanSample(segments, c.minSeconds, c.maxSeconds)
	if err != nil {
		return transcript.VoiceSample{}, fmt.Errorf("speaker %s: %w", speakerID, err)
	}

	name := fileStem(speakerID)
	dest := filepath.Join(c.workDir, "voice_"+name+".wav")

	if len(plan.Slices) == 1 {
		win := plan.Slices[0]
		if err := c.tool.Slice(ctx, sourceAudio, win.Start, win.End-win.Start, dest); err != nil {
			return transcript.VoiceSample{}, fmt.Errorf("speaker %s: slice: %w", speakerID, err)
		}
	} else {
		parts := make([]string, 0, len(plan.Slices))
		defer func() {
			for _, part := range parts {
				_ = os.Remove(part)
			}
		}()
		for i, win := range plan.Slices {
			part := filepath.Join(c.workDir, fmt.Sprintf("voice_%s_part%02d.wav", name, i))
			if err := ctx.Err(); err != nil {
				return transcript.VoiceSample{}, err
			}
			if err := c.tool.Slice(ctx, sourceAudio, win.Start, win.End-win.Start, part); err != nil {
				return transcript.VoiceSample{}, fmt.Errorf("speaker %s: slice %d: %w", speakerID, i, err)
			}
			parts = append(parts, part)
		}
		if err := c.tool.Concat(ctx, parts, dest); err != nil {
			_ = os.Remove(dest)
			return transcript.VoiceSample{}, fmt.Errorf("speaker %s: concat: %w", speakerID, err)
		}
	}

	logging.WithContext(ctx, c.logger).Info("voice sample curated",
		logging.String("speaker", speakerID),
		logging.Seconds("duration_seconds", plan.Total),
		logging.Int("parts", len(plan.Slices)),
		logging.String(logging.FieldEventType, "voice_sample_curated"),
	)
	return transcript.VoiceSample{SpeakerID: speakerID, AudioPath: dest, Duration: plan.Total}, nil
}

// CurateAll curates one sample per assigned speaker, in parallel. Speakers
// without enough material are skipped with a warning; any other failure
// aborts the batch.
func (c *Curator) CurateAll(ctx context.Context, segments []transcript.Segment, sourceAudio string, concurrency int) (map[string]transcript.VoiceSample, error) {
	bySpeaker := map[string][]transcript.Segment{}
	var speakers []string
	for _, seg := range segments {
		if seg.SpeakerID == "" {
			continue
		}
		if _, ok := bySpeaker[seg.SpeakerID]; !ok {
			speakers = append(speakers, seg.SpeakerID)
		}
		bySpeaker[seg.SpeakerID] = append(bySpeaker[seg.SpeakerID], seg)
	}

	if concurrency < 1 {
		concurrency = 1
	}
	var mu sync.Mutex
	samples := make(map[string]transcript.VoiceSample, len(speakers))
	logger := logging.WithContext(ctx, c.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, id := range speakers {
		g.Go(func() error {
			sample, err := c.Curate(gctx, id, bySpeaker[id], sourceAudio)
			if errors.Is(err, ErrInsufficientMaterial) {
				logging.WarnWithContext(logger, "voice sample skipped", "voice_sample_insufficient",
					logging.String("speaker", id),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "lower voice_samples.min_seconds or supply longer source speech"),
					logging.String(logging.FieldImpact, "speaker falls back to the default voice"),
				)
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			samples[id] = sample
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, sample := range samples {
			_ = os.Remove(sample.AudioPath)
		}
		return nil, err
	}
	return samples, nil
}

func fileStem(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
