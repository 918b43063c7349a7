package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"redub/internal/process"
	"redub/internal/transcript"
)

// entries limits ffprobe output to what the pipeline reads.
const entries = "stream=index,codec_type,codec_name,duration,sample_rate,channels:format=duration,size"

// Result is the decoded ffprobe answer.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream is one elementary stream. ffprobe reports numbers as strings and
// uses "N/A" when it has none.
type Stream struct {
	Index      int    `json:"index"`
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Duration   string `json:"duration"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Format is container-level metadata.
type Format struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
}

// Prober runs ffprobe as a bounded subprocess.
type Prober struct {
	Binary  string
	Timeout time.Duration
}

// Inspect probes path.
func (p Prober) Inspect(ctx context.Context, path string) (Result, error) {
	return Inspect(ctx, p.Binary, p.Timeout, path)
}

// AudioInfo probes path and reduces it to its first audio stream.
func (p Prober) AudioInfo(ctx context.Context, path string) (transcript.AudioFile, error) {
	result, err := p.Inspect(ctx, path)
	if err != nil {
		return transcript.AudioFile{}, err
	}
	return result.AudioFile(path)
}

// Inspect runs binary (default "ffprobe") against path.
func Inspect(ctx context.Context, binary string, timeout time.Duration, path string) (Result, error) {
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("ffprobe: empty path")
	}
	if binary = strings.TrimSpace(binary); binary == "" {
		binary = "ffprobe"
	}
	out, err := process.Run(ctx, process.Command{
		Binary:  binary,
		Args:    []string{"-v", "error", "-print_format", "json", "-show_entries", entries, "--", path},
		Timeout: timeout,
	})
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	var result Result
	if err := json.Unmarshal(out.Stdout, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe %s: decode: %w", path, err)
	}
	return result, nil
}

// StreamsOf returns the streams of one codec type ("audio", "video").
func (r Result) StreamsOf(kind string) []Stream {
	var out []Stream
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, kind) {
			out = append(out, s)
		}
	}
	return out
}

func (r Result) VideoStreamCount() int { return len(r.StreamsOf("video")) }

func (r Result) AudioStreamCount() int { return len(r.StreamsOf("audio")) }

// DurationSeconds is the container duration, 0 when ffprobe gave none.
func (r Result) DurationSeconds() float64 {
	d, _ := positive(r.Format.Duration)
	return d
}

// AudioFile describes the first audio stream. Its own duration is preferred
// over the container's.
func (r Result) AudioFile(path string) (transcript.AudioFile, error) {
	audio := r.StreamsOf("audio")
	if len(audio) == 0 {
		return transcript.AudioFile{}, fmt.Errorf("ffprobe: no audio stream in %s", path)
	}
	first := audio[0]
	duration, ok := positive(first.Duration)
	if !ok {
		duration = r.DurationSeconds()
	}
	rate, _ := strconv.Atoi(strings.TrimSpace(first.SampleRate))
	return transcript.AudioFile{
		Path:       path,
		Duration:   duration,
		SampleRate: rate,
		Channels:   first.Channels,
	}, nil
}

// positive parses a strictly positive ffprobe number.
func positive(value string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
