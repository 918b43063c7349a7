package transcode

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"redub/internal/services"
)

// Window is an absolute time range in seconds.
type Window struct {
	Start float64
	End   float64
}

// Overlay places an audio file at an absolute offset in seconds.
type Overlay struct {
	Path  string
	Start float64
}

// Tool is the set of transcoding operations the pipeline needs.
type Tool interface {
	ExtractAudio(ctx context.Context, video, dest string) error
	Slice(ctx context.Context, src string, start, duration float64, dest string) error
	Concat(ctx context.Context, parts []string, dest string) error
	Gain(ctx context.Context, src, dest string, gainDB float64, windows []Window) error
	Mix(ctx context.Context, background string, overlays []Overlay, dest string) error
	Mux(ctx context.Context, video, audio, dest string) error
}

// Audio parameters for the working soundtrack and for voice slices.
const (
	DefaultExtractRate     = 44100
	DefaultExtractChannels = 2
	DefaultSliceRate       = 22050
)

// FFmpeg implements Tool by building ffmpeg argument lists for a Runner.
type FFmpeg struct {
	runner          Runner
	ExtractRate     int
	ExtractChannels int
	SliceRate       int
}

// NewFFmpeg returns an FFmpeg tool bound to runner.
func NewFFmpeg(runner Runner, sliceRate int) *FFmpeg {
	if sliceRate <= 0 {
		sliceRate = DefaultSliceRate
	}
	return &FFmpeg{
		runner:          runner,
		ExtractRate:     DefaultExtractRate,
		ExtractChannels: DefaultExtractChannels,
		SliceRate:       sliceRate,
	}
}

func baseArgs() []string {
	return []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y"}
}

// ExtractAudio writes the first audio stream of video as 16-bit PCM WAV.
func (f *FFmpeg) ExtractAudio(ctx context.Context, video, dest string) error {
	args := append(baseArgs(),
		"-i", video,
		"-vn",
		"-map", "0:a:0",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(f.ExtractRate),
		"-ac", strconv.Itoa(f.ExtractChannels),
		dest,
	)
	return f.run(ctx, "extract audio", dest, args)
}

// Slice cuts [start, start+duration) out of src as a mono voice slice.
func (f *FFmpeg) Slice(ctx context.Context, src string, start, duration float64, dest string) error {
	if duration <= 0 {
		return services.Wrap(services.ErrValidation, "transcode", "slice", fmt.Sprintf("non-positive duration %.3f", duration), nil)
	}
	args := append(baseArgs(),
		"-i", src,
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(f.SliceRate),
		"-ac", "1",
		dest,
	)
	return f.run(ctx, "slice", dest, args)
}

// Concat joins parts end to end.
func (f *FFmpeg) Concat(ctx context.Context, parts []string, dest string) error {
	if len(parts) == 0 {
		return services.Wrap(services.ErrValidation, "transcode", "concat", "no inputs", nil)
	}
	args := baseArgs()
	var labels strings.Builder
	for i, part := range parts {
		args = append(args, "-i", part)
		fmt.Fprintf(&labels, "[%d:a]", i)
	}
	graph := fmt.Sprintf("%sconcat=n=%d:v=0:a=1[out]", labels.String(), len(parts))
	args = append(args,
		"-filter_complex", graph,
		"-map", "[out]",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(f.SliceRate),
		"-ac", "1",
		dest,
	)
	return f.run(ctx, "concat", dest, args)
}

// Gain applies gainDB to src. With no windows the whole track is scaled;
// otherwise only the listed windows are.
func (f *FFmpeg) Gain(ctx context.Context, src, dest string, gainDB float64, windows []Window) error {
	args := append(baseArgs(),
		"-i", src,
		"-af", VolumeFilter(gainDB, windows),
		"-acodec", "pcm_s16le",
		dest,
	)
	return f.run(ctx, "gain", dest, args)
}

// Mix delays each overlay to its start and sums everything with the
// background, keeping the longest input's duration.
func (f *FFmpeg) Mix(ctx context.Context, background string, overlays []Overlay, dest string) error {
	args := append(baseArgs(), "-i", background)
	for _, overlay := range overlays {
		args = append(args, "-i", overlay.Path)
	}
	args = append(args,
		"-filter_complex", MixFilter(overlays),
		"-map", "[out]",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(f.ExtractRate),
		"-ac", strconv.Itoa(f.ExtractChannels),
		dest,
	)
	return f.run(ctx, "mix", dest, args)
}

// Mux copies the video stream of video and replaces its audio with audio.
func (f *FFmpeg) Mux(ctx context.Context, video, audio, dest string) error {
	args := append(baseArgs(),
		"-i", video,
		"-i", audio,
		"-map", "0:v",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", audioCodecFor(dest),
		dest,
	)
	return f.run(ctx, "mux", dest, args)
}

func (f *FFmpeg) run(ctx context.Context, operation, dest string, args []string) error {
	if f.runner == nil {
		return services.Wrap(services.ErrConfiguration, "transcode", operation, "runner unavailable", nil)
	}
	if _, err := f.runner.Run(ctx, dest, args); err != nil {
		marker := services.ErrExternalTool
		if errors.Is(err, ErrTimeout) {
			marker = services.ErrTimeout
		}
		return services.Wrap(marker, "transcode", operation, "", err)
	}
	return nil
}

// GainFactor converts decibels to a linear amplitude factor.
func GainFactor(db float64) float64 {
	return math.Pow(10, db/20)
}

// VolumeFilter renders the ffmpeg volume filter for gainDB, limited to windows when given.
func VolumeFilter(gainDB float64, windows []Window) string {
	filter := "volume=" + strconv.FormatFloat(GainFactor(gainDB), 'f', 6, 64)
	if len(windows) == 0 {
		return filter
	}
	terms := make([]string, 0, len(windows))
	for _, w := range windows {
		if w.End <= w.Start {
			continue
		}
		terms = append(terms, fmt.Sprintf("between(t,%s,%s)", formatSeconds(w.Start), formatSeconds(w.End)))
	}
	if len(terms) == 0 {
		return filter
	}
	return filter + ":enable='" + strings.Join(terms, "+") + "'"
}

// MixFilter renders the filter graph for Mix; input 0 is the background.
func MixFilter(overlays []Overlay) string {
	count := len(overlays)
	var graph strings.Builder
	for i := 0; i < count; i++ {
		delayMS := int64(math.Round(math.Max(overlays[i].Start, 0) * 1000))
		fmt.Fprintf(&graph, "[%d:a]adelay=delays=%d:all=1[d%d];", i+1, delayMS, i+1)
	}
	graph.WriteString("[0:a]")
	for i := 0; i < count; i++ {
		fmt.Fprintf(&graph, "[d%d]", i+1)
	}
	fmt.Fprintf(&graph, "amix=inputs=%d:duration=longest:normalize=0[out]", count+1)
	return graph.String()
}

func audioCodecFor(dest string) string {
	switch strings.ToLower(filepath.Ext(dest)) {
	case ".webm":
		return "libopus"
	default:
		return "aac"
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
