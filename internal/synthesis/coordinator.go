// Package synthesis drives per-segment speech synthesis against a TTS
// backend.
//
// Segments are independent, so calls run in a bounded pool. The voice-sample
// map is read-only once Run starts. A bad segment is skipped and counted;
// the run only fails when no clip at all was produced.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"redub/internal/language"
	"redub/internal/logging"
	"redub/internal/timing"
	"redub/internal/transcript"
)

// ErrNoUsableSegments reports a run in which every segment was skipped.
var ErrNoUsableSegments = errors.New("no usable segments")

// DefaultLanguage is used when neither the job nor detection yields a language.
const DefaultLanguage = "en"

// Request is one synthesis call.
type Request struct {
	Text        string
	Language    string
	SpeakerID   string
	Voice       string
	SamplePath  string
	SpeedFactor float64
	OutputPath  string
}

// Synthesizer is the TTS collaborator. It returns the path it actually wrote,
// which may differ from OutputPath in extension.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (string, error)
	ClonesVoices() bool
}

// Options tune a Coordinator.
type Options struct {
	WorkDir        string
	Concurrency    int
	DefaultSpeaker string
	Language       string
	Voice          string
	// Measure returns an audio file's duration in seconds; optional.
	Measure func(path string) (float64, error)
}

// Result summarizes a synthesis run.
type Result struct {
	Clips          []transcript.Clip
	Language       string
	DefaultSpeaker string
	Empty          int
	NoVoice        int
	Failed         int
}

// Skipped returns the number of segments that produced no clip.
func (r Result) Skipped() int {
	return r.Empty + r.NoVoice + r.Failed
}

// Coordinator fans synthesis out over segments.
type Coordinator struct {
	synth  Synthesizer
	timing timing.Controller
	opts   Options
	logger *slog.Logger
}

// NewCoordinator returns a coordinator.
func NewCoordinator(synth Synthesizer, ctrl timing.Controller, opts Options, logger *slog.Logger) *Coordinator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Coordinator{synth: synth, timing: ctrl, opts: opts, logger: logging.NewComponentLogger(logger, "synthesis")}
}

type task struct {
	index int
	seg   transcript.Segment
	req   Request
}

// Run synthesizes every usable segment. Clips come back in segment order.
func (c *Coordinator) Run(ctx context.Context, segments []transcript.Segment, samples map[string]transcript.VoiceSample) (Result, error) {
	logger := logging.WithContext(ctx, c.logger)
	result := Result{Language: c.resolveLanguage(segments)}
	clones := c.synth.ClonesVoices()
	if clones {
		result.DefaultSpeaker = ChooseDefaultSpeaker(c.opts.DefaultSpeaker, samples, segments)
	}

	tasks := make([]task, 0, len(segments))
	for i, seg := range segments {
		text := seg.SpeechText()
		if text == "" {
			result.Empty++
			logger.Debug("segment skipped: empty text",
				logging.Int("segment", i),
				logging.String(logging.FieldEventType, "segment_skipped_empty"),
			)
			continue
		}
		req := Request{
			Text:        text,
			Language:    result.Language,
			SpeakerID:   seg.SpeakerID,
			Voice:       c.opts.Voice,
			SpeedFactor: c.timing.SpeedFactor(text, seg.Duration()),
			OutputPath:  filepath.Join(c.opts.WorkDir, fmt.Sprintf("clip_%04d.wav", i)),
		}
		if clones {
			sample, ok := samples[seg.SpeakerID]
			if !ok && result.DefaultSpeaker != "" {
				sample, ok = samples[result.DefaultSpeaker]
				req.SpeakerID = result.DefaultSpeaker
			}
			if !ok {
				result.NoVoice++
				logging.WarnWithContext(logger, "segment skipped: no voice sample", "segment_skipped_no_voice",
					logging.Int("segment", i),
					logging.String("speaker", seg.SpeakerID),
					logging.String(logging.FieldErrorHint, "provide longer speech per speaker or set synthesis.default_speaker"),
					logging.String(logging.FieldImpact, "segment stays silent in the dub"),
				)
				continue
			}
			req.SamplePath = sample.AudioPath
		} else if req.SpeakerID == "" {
			req.SpeakerID = c.opts.DefaultSpeaker
		}
		tasks = append(tasks, task{index: i, seg: seg, req: req})
	}

	clips := make([]*transcript.Clip, len(segments))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)
	for _, tk := range tasks {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path, err := c.synth.Synthesize(ctx, tk.req)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				mu.Lock()
				result.Failed++
				mu.Unlock()
				logging.WarnWithContext(logger, "segment skipped: synthesis failed", "segment_skipped_failed",
					logging.Int("segment", tk.index),
					logging.String("speaker", tk.req.SpeakerID),
					logging.Error(err),
					logging.String(logging.FieldImpact, "segment stays silent in the dub"),
				)
				return nil
			}
			clip := transcript.Clip{
				AudioPath:   path,
				Start:       tk.seg.Start,
				End:         tk.seg.End,
				SpeakerID:   tk.req.SpeakerID,
				SpeedFactor: tk.req.SpeedFactor,
			}
			mu.Lock()
			clips[tk.index] = &clip
			mu.Unlock()
			return nil
		})
	}
	waitErr := g.Wait()
	if waitErr == nil {
		waitErr = ctx.Err()
	}

	for _, clip := range clips {
		if clip != nil {
			result.Clips = append(result.Clips, *clip)
		}
	}
	if waitErr != nil {
		RemoveClips(result.Clips)
		result.Clips = nil
		return result, waitErr
	}

	c.reportDrift(logger, result.Clips)
	logger.Info("synthesis complete",
		logging.Int("clips", len(result.Clips)),
		logging.Int("skipped", result.Skipped()),
		logging.Int("skipped_empty", result.Empty),
		logging.Int("skipped_no_voice", result.NoVoice),
		logging.Int("failed", result.Failed),
		logging.String("language", result.Language),
	)
	if len(result.Clips) == 0 {
		return result, fmt.Errorf("%w: %d segments, %d empty, %d without voice, %d failed",
			ErrNoUsableSegments, len(segments), result.Empty, result.NoVoice, result.Failed)
	}
	return result, nil
}

func (c *Coordinator) resolveLanguage(segments []transcript.Segment) string {
	if lang := language.Normalize(c.opts.Language); lang != "" {
		return lang
	}
	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		texts = append(texts, seg.SpeechText())
	}
	if detected := language.Detect(texts); detected != "" {
		c.logger.Info("target language detected from translated text",
			logging.String("language", detected),
			logging.String(logging.FieldEventType, "language_detected"),
		)
		return detected
	}
	return DefaultLanguage
}

func (c *Coordinator) reportDrift(logger *slog.Logger, clips []transcript.Clip) {
	if c.opts.Measure == nil || len(clips) == 0 {
		return
	}
	maxOverrun := 0.0
	over := 0
	for _, clip := range clips {
		actual, err := c.opts.Measure(clip.AudioPath)
		if err != nil {
			logger.Debug("clip duration unavailable", logging.String("clip", clip.AudioPath), logging.Error(err))
			continue
		}
		drift := actual - (clip.End - clip.Start)
		logger.Debug("clip drift",
			logging.String("clip", filepath.Base(clip.AudioPath)),
			logging.Seconds("target_seconds", clip.End-clip.Start),
			logging.Seconds("actual_seconds", actual),
			logging.Seconds("drift_seconds", drift),
			logging.Float64("speed", clip.SpeedFactor),
		)
		if drift > 0 {
			over++
			maxOverrun = math.Max(maxOverrun, drift)
		}
	}
	if over > 0 {
		logger.Info("clips overrun their windows",
			logging.Int("clips_over", over),
			logging.Seconds("max_overrun_seconds", maxOverrun),
			logging.String(logging.FieldEventType, "clip_drift"),
		)
	}
}

// ChooseDefaultSpeaker returns configured when it has a sample, otherwise the
// sampled speaker covering the most transcript time (ties by ID).
func ChooseDefaultSpeaker(configured string, samples map[string]transcript.VoiceSample, segments []transcript.Segment) string {
	if _, ok := samples[configured]; ok && configured != "" {
		return configured
	}
	coverage := map[string]float64{}
	for _, seg := range segments {
		if _, ok := samples[seg.SpeakerID]; ok {
			coverage[seg.SpeakerID] += seg.Duration()
		}
	}
	ids := make([]string, 0, len(samples))
	for id := range samples {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	best := ""
	for _, id := range ids {
		if best == "" || coverage[id] > coverage[best] {
			best = id
		}
	}
	return best
}

// RemoveClips deletes clip audio files.
func RemoveClips(clips []transcript.Clip) {
	for _, clip := range clips {
		_ = os.Remove(clip.AudioPath)
	}
}
