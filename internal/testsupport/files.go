package testsupport

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"

	"redub/internal/media/wavinfo"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteTone writes a mono 16-bit sine tone of the given length and amplitude
// (0..1) as WAV.
func WriteTone(t testing.TB, path string, rate int, seconds, amplitude float64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	frames := int(math.Round(float64(rate) * seconds))
	data := make([]int, frames)
	for i := range data {
		data[i] = int(amplitude * 32767 * math.Sin(2*math.Pi*330*float64(i)/float64(rate)))
	}
	buf := &audio.IntBuffer{Data: data, Format: &audio.Format{SampleRate: rate, NumChannels: 1}, SourceBitDepth: 16}
	if err := wavinfo.Write(path, buf, 16); err != nil {
		t.Fatalf("write tone %s: %v", path, err)
	}
}
