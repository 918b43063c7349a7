package synthesis_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"redub/internal/logging"
	"redub/internal/synthesis"
	"redub/internal/timing"
	"redub/internal/transcript"
)

type fakeSynth struct {
	clones   bool
	failText string
	mu       sync.Mutex
	requests []synthesis.Request
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeSynth) ClonesVoices() bool { return f.clones }

func (f *fakeSynth) Synthesize(ctx context.Context, req synthesis.Request) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.failText != "" && req.Text == f.failText {
		return "", errors.New("backend exploded")
	}
	if err := os.WriteFile(req.OutputPath, []byte("audio"), 0o644); err != nil {
		return "", err
	}
	return req.OutputPath, nil
}

func (f *fakeSynth) request(text string) (synthesis.Request, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range f.requests {
		if req.Text == text {
			return req, true
		}
	}
	return synthesis.Request{}, false
}

func newCoordinator(t *testing.T, synth synthesis.Synthesizer, opts synthesis.Options) *synthesis.Coordinator {
	t.Helper()
	if opts.WorkDir == "" {
		opts.WorkDir = t.TempDir()
	}
	return synthesis.NewCoordinator(synth, timing.NewController(150, 0.8, 1.5), opts, logging.NewNop())
}

func segment(start, end float64, speaker, text string) transcript.Segment {
	return transcript.Segment{Start: start, End: end, SpeakerID: speaker, Text: "src", Translated: text}
}

func TestRunPreservesOrderAndSkipsEmpty(t *testing.T) {
	synth := &fakeSynth{}
	coord := newCoordinator(t, synth, synthesis.Options{Concurrency: 3, Language: "es"})
	segments := []transcript.Segment{
		segment(0, 2, "speaker_1", "hola"),
		segment(2, 3, "speaker_1", "   "),
		segment(3, 5, "speaker_2", "adiós amigo"),
		segment(6, 8, "speaker_1", "qué tal"),
	}

	result, err := coord.Run(context.Background(), segments, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Clips) != 3 {
		t.Fatalf("clips = %d, want 3", len(result.Clips))
	}
	wantStarts := []float64{0, 3, 6}
	for i, clip := range result.Clips {
		if clip.Start != wantStarts[i] {
			t.Fatalf("clip %d start = %v, want %v", i, clip.Start, wantStarts[i])
		}
		if _, err := os.Stat(clip.AudioPath); err != nil {
			t.Fatalf("clip %d missing: %v", i, err)
		}
	}
	if result.Empty != 1 || result.Skipped() != 1 {
		t.Fatalf("empty=%d skipped=%d, want 1/1", result.Empty, result.Skipped())
	}
	if result.Language != "es" {
		t.Fatalf("language = %q", result.Language)
	}
	req, ok := synth.request("hola")
	if !ok || req.Language != "es" {
		t.Fatalf("request language = %+v", req)
	}
}

func TestRunSpeedFactorWithinBounds(t *testing.T) {
	synth := &fakeSynth{}
	coord := newCoordinator(t, synth, synthesis.Options{Language: "en"})
	long := strings.Repeat("word ", 40)
	segments := []transcript.Segment{
		segment(0, 1, "", long),
		segment(1, 60, "", "short"),
	}
	result, err := coord.Run(context.Background(), segments, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := result.Clips[0].SpeedFactor; got != 1.5 {
		t.Fatalf("fast clip speed = %v, want 1.5", got)
	}
	if got := result.Clips[1].SpeedFactor; got != 0.8 {
		t.Fatalf("slow clip speed = %v, want 0.8", got)
	}
}

func TestRunCloningFallsBackToDefaultSpeaker(t *testing.T) {
	synth := &fakeSynth{clones: true}
	coord := newCoordinator(t, synth, synthesis.Options{Language: "en"})
	samples := map[string]transcript.VoiceSample{
		"speaker_1": {SpeakerID: "speaker_1", AudioPath: "/samples/voice_speaker_1.wav", Duration: 8},
	}
	segments := []transcript.Segment{
		segment(0, 5, "speaker_1", "first line"),
		segment(5, 7, "speaker_2", "second line"),
	}

	result, err := coord.Run(context.Background(), segments, samples)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Clips) != 2 {
		t.Fatalf("clips = %d, want 2", len(result.Clips))
	}
	req, _ := synth.request("second line")
	if req.SamplePath != "/samples/voice_speaker_1.wav" || req.SpeakerID != "speaker_1" {
		t.Fatalf("fallback request = %+v", req)
	}
	if result.DefaultSpeaker != "speaker_1" {
		t.Fatalf("default speaker = %q", result.DefaultSpeaker)
	}
}

func TestRunCloningWithoutAnySample(t *testing.T) {
	synth := &fakeSynth{clones: true}
	coord := newCoordinator(t, synth, synthesis.Options{Language: "en"})
	segments := []transcript.Segment{segment(0, 2, "speaker_1", "alone")}

	result, err := coord.Run(context.Background(), segments, nil)
	if !errors.Is(err, synthesis.ErrNoUsableSegments) {
		t.Fatalf("err = %v, want ErrNoUsableSegments", err)
	}
	if result.NoVoice != 1 {
		t.Fatalf("no voice = %d, want 1", result.NoVoice)
	}
}

func TestRunSkipsFailedSegments(t *testing.T) {
	synth := &fakeSynth{failText: "broken"}
	coord := newCoordinator(t, synth, synthesis.Options{Language: "en"})
	segments := []transcript.Segment{
		segment(0, 2, "", "fine"),
		segment(2, 4, "", "broken"),
	}
	result, err := coord.Run(context.Background(), segments, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Clips) != 1 || result.Failed != 1 {
		t.Fatalf("clips=%d failed=%d", len(result.Clips), result.Failed)
	}
}

func TestRunAllFailed(t *testing.T) {
	synth := &fakeSynth{failText: "broken"}
	coord := newCoordinator(t, synth, synthesis.Options{Language: "en"})
	_, err := coord.Run(context.Background(), []transcript.Segment{segment(0, 2, "", "broken")}, nil)
	if !errors.Is(err, synthesis.ErrNoUsableSegments) {
		t.Fatalf("err = %v, want ErrNoUsableSegments", err)
	}
}

func TestRunHonorsConcurrencyLimit(t *testing.T) {
	synth := &fakeSynth{}
	coord := newCoordinator(t, synth, synthesis.Options{Concurrency: 2, Language: "en"})
	var segments []transcript.Segment
	for i := 0; i < 12; i++ {
		segments = append(segments, segment(float64(i), float64(i)+1, "", "line"))
	}
	if _, err := coord.Run(context.Background(), segments, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if peak := synth.peak.Load(); peak > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestRunCancelledRemovesClips(t *testing.T) {
	dir := t.TempDir()
	synth := &fakeSynth{}
	coord := newCoordinator(t, synth, synthesis.Options{WorkDir: dir, Language: "en"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := coord.Run(ctx, []transcript.Segment{segment(0, 2, "", "hello")}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("work dir not empty: %v", entries)
	}
}

func TestRunDetectsLanguage(t *testing.T) {
	synth := &fakeSynth{}
	coord := newCoordinator(t, synth, synthesis.Options{})
	segments := []transcript.Segment{
		segment(0, 4, "", "Buenos días a todos, hoy vamos a hablar de la historia de nuestra ciudad."),
		segment(4, 8, "", "La ciudad fue fundada hace muchos años por un grupo de pescadores."),
	}
	result, err := coord.Run(context.Background(), segments, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Language != "es" {
		t.Fatalf("language = %q, want es", result.Language)
	}
}

func TestRunReportsDrift(t *testing.T) {
	synth := &fakeSynth{}
	var measured atomic.Int32
	coord := newCoordinator(t, synth, synthesis.Options{
		Language: "en",
		Measure: func(path string) (float64, error) {
			measured.Add(1)
			if filepath.Ext(path) != ".wav" {
				return 0, errors.New("unexpected extension")
			}
			return 3, nil
		},
	})
	if _, err := coord.Run(context.Background(), []transcript.Segment{segment(0, 2, "", "hello")}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if measured.Load() != 1 {
		t.Fatalf("measured = %d, want 1", measured.Load())
	}
}

func TestChooseDefaultSpeaker(t *testing.T) {
	samples := map[string]transcript.VoiceSample{
		"speaker_1": {SpeakerID: "speaker_1"},
		"speaker_2": {SpeakerID: "speaker_2"},
	}
	segments := []transcript.Segment{
		segment(0, 3, "speaker_1", "a"),
		segment(3, 10, "speaker_2", "b"),
		segment(10, 40, "speaker_3", "c"),
	}
	tests := []struct {
		name       string
		configured string
		samples    map[string]transcript.VoiceSample
		want       string
	}{
		{name: "configured with sample", configured: "speaker_1", samples: samples, want: "speaker_1"},
		{name: "configured without sample", configured: "speaker_3", samples: samples, want: "speaker_2"},
		{name: "most coverage", samples: samples, want: "speaker_2"},
		{name: "no samples", samples: nil, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := synthesis.ChooseDefaultSpeaker(tt.configured, tt.samples, segments); got != tt.want {
				t.Fatalf("ChooseDefaultSpeaker = %q, want %q", got, tt.want)
			}
		})
	}
}
