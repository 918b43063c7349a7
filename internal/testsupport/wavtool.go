package testsupport

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/go-audio/audio"

	"redub/internal/media/wavinfo"
	"redub/internal/transcode"
)

// WavTool implements transcode.Tool in-process on mono 16-bit WAV files so
// pipeline tests can assert durations and loudness without ffmpeg. Inputs
// must share the tool's sample rate; multi-channel inputs are downmixed.
type WavTool struct {
	Rate int

	mu     sync.Mutex
	calls  map[string]int
	failOn map[string]error
}

var _ transcode.Tool = (*WavTool)(nil)

// NewWavTool returns a tool working at rate.
func NewWavTool(rate int) *WavTool {
	return &WavTool{Rate: rate, calls: map[string]int{}, failOn: map[string]error{}}
}

// FailOn makes every call to operation return err.
func (w *WavTool) FailOn(operation string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failOn[operation] = err
}

// Calls reports how many times operation ran.
func (w *WavTool) Calls(operation string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls[operation]
}

func (w *WavTool) begin(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls[operation]++
	return w.failOn[operation]
}

// ExtractAudio treats the video file as a WAV container and copies its audio.
func (w *WavTool) ExtractAudio(ctx context.Context, video, dest string) error {
	if err := w.begin(ctx, "extract"); err != nil {
		return err
	}
	samples, err := w.load(video)
	if err != nil {
		return err
	}
	return w.save(dest, samples)
}

// Slice copies [start, start+duration) of src, clipped to the source length.
func (w *WavTool) Slice(ctx context.Context, src string, start, duration float64, dest string) error {
	if err := w.begin(ctx, "slice"); err != nil {
		return err
	}
	samples, err := w.load(src)
	if err != nil {
		return err
	}
	from := w.index(start)
	to := w.index(start + duration)
	if to > len(samples) {
		to = len(samples)
	}
	if from >= to {
		return fmt.Errorf("slice %s: empty range %.3f+%.3f", src, start, duration)
	}
	return w.save(dest, append([]int(nil), samples[from:to]...))
}

// Concat joins parts end to end. Every part must exist until the join completes.
func (w *WavTool) Concat(ctx context.Context, parts []string, dest string) error {
	if err := w.begin(ctx, "concat"); err != nil {
		return err
	}
	if len(parts) == 0 {
		return errors.New("concat: no inputs")
	}
	var out []int
	for _, part := range parts {
		samples, err := w.load(part)
		if err != nil {
			return err
		}
		out = append(out, samples...)
	}
	return w.save(dest, out)
}

// Gain scales src by gainDB, inside windows only when windows are given.
func (w *WavTool) Gain(ctx context.Context, src, dest string, gainDB float64, windows []transcode.Window) error {
	if err := w.begin(ctx, "gain"); err != nil {
		return err
	}
	samples, err := w.load(src)
	if err != nil {
		return err
	}
	factor := transcode.GainFactor(gainDB)
	for i := range samples {
		if len(windows) > 0 && !inWindows(float64(i)/float64(w.Rate), windows) {
			continue
		}
		samples[i] = int(math.Round(float64(samples[i]) * factor))
	}
	return w.save(dest, samples)
}

// Mix sums the background with each overlay delayed to its start.
func (w *WavTool) Mix(ctx context.Context, background string, overlays []transcode.Overlay, dest string) error {
	if err := w.begin(ctx, "mix"); err != nil {
		return err
	}
	out, err := w.load(background)
	if err != nil {
		return err
	}
	for _, overlay := range overlays {
		samples, err := w.load(overlay.Path)
		if err != nil {
			return err
		}
		offset := w.index(overlay.Start)
		if need := offset + len(samples); need > len(out) {
			out = append(out, make([]int, need-len(out))...)
		}
		for i, v := range samples {
			out[offset+i] = clamp16(out[offset+i] + v)
		}
	}
	return w.save(dest, out)
}

// Mux writes the mixed audio as the output "video".
func (w *WavTool) Mux(ctx context.Context, video, audioPath, dest string) error {
	if err := w.begin(ctx, "mux"); err != nil {
		return err
	}
	if _, err := os.Stat(video); err != nil {
		return fmt.Errorf("mux: %w", err)
	}
	samples, err := w.load(audioPath)
	if err != nil {
		return err
	}
	return w.save(dest, samples)
}

func (w *WavTool) index(seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	return int(math.Round(seconds * float64(w.Rate)))
}

func (w *WavTool) load(path string) ([]int, error) {
	buf, _, err := wavinfo.Read(path)
	if err != nil {
		return nil, err
	}
	if buf.Format.SampleRate != w.Rate {
		return nil, fmt.Errorf("%s: sample rate %d, tool works at %d", path, buf.Format.SampleRate, w.Rate)
	}
	channels := buf.Format.NumChannels
	if channels <= 1 {
		return buf.Data, nil
	}
	mono := make([]int, len(buf.Data)/channels)
	for i := range mono {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c]
		}
		mono[i] = sum / channels
	}
	return mono, nil
}

func (w *WavTool) save(path string, samples []int) error {
	buf := &audio.IntBuffer{Data: samples, Format: &audio.Format{SampleRate: w.Rate, NumChannels: 1}, SourceBitDepth: 16}
	return wavinfo.Write(path, buf, 16)
}

func inWindows(t float64, windows []transcode.Window) bool {
	for _, win := range windows {
		if t >= win.Start && t <= win.End {
			return true
		}
	}
	return false
}

func clamp16(v int) int {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return v
	}
}
