// Package wavinfo reads metadata and loudness from PCM WAV files without a
// subprocess. Every intermediate file the pipeline writes is 16-bit PCM WAV,
// so clip drift and mix checks stay in-process.
package wavinfo

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"redub/internal/transcript"
)

// ErrNotWAV reports a file that is not a readable PCM WAV container.
var ErrNotWAV = errors.New("not a valid wav file")

// Probe returns the metadata tuple for a WAV file.
func Probe(path string) (transcript.AudioFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return transcript.AudioFile{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		return transcript.AudioFile{}, fmt.Errorf("%s: %w", path, ErrNotWAV)
	}
	duration, err := dec.Duration()
	if err != nil {
		return transcript.AudioFile{}, fmt.Errorf("wav duration %s: %w", path, err)
	}
	return transcript.AudioFile{
		Path:       path,
		Duration:   duration.Seconds(),
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}

// Read decodes the full PCM payload of a WAV file.
func Read(path string) (*audio.IntBuffer, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%s: %w", path, ErrNotWAV)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	return buf, int(dec.BitDepth), nil
}

// Write encodes buf as PCM WAV at bitDepth.
func Write(path string, buf *audio.IntBuffer, bitDepth int) error {
	if buf == nil || buf.Format == nil {
		return errors.New("wav write: buffer format required")
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	enc := wav.NewEncoder(file, buf.Format.SampleRate, bitDepth, buf.Format.NumChannels, 1)
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		_ = file.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		_ = file.Close()
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return file.Close()
}

// RMS returns the root-mean-square level of a WAV file, normalized to [0, 1].
func RMS(path string) (float64, error) {
	buf, bitDepth, err := Read(path)
	if err != nil {
		return 0, err
	}
	return BufferRMS(buf, bitDepth), nil
}

// BufferRMS returns the normalized RMS of an integer PCM buffer.
func BufferRMS(buf *audio.IntBuffer, bitDepth int) float64 {
	if buf == nil || len(buf.Data) == 0 {
		return 0
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	full := math.Pow(2, float64(bitDepth-1))
	var sum float64
	for _, sample := range buf.Data {
		v := float64(sample) / full
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(buf.Data)))
}
