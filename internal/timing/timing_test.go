package timing_test

import (
	"math"
	"strings"
	"testing"

	"redub/internal/timing"
)

func TestSpeedFactor(t *testing.T) {
	ctrl := timing.NewController(150, 0.8, 1.5)

	tests := []struct {
		name   string
		text   string
		target float64
		want   float64
	}{
		{"exact fit", "one two three four five", 2, 1.0},
		{"too long clamps to max", strings.Repeat("word ", 20), 2, 1.5},
		{"too short clamps to min", "hi", 10, 0.8},
		{"within range", "one two three four five six", 2, 1.2},
		{"zero target", "hello there", 0, 1.0},
		{"negative target", "hello there", -3, 1.0},
		{"empty text", "   ", 2, 1.0},
		{"punctuation only", "... — !", 0.1, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ctrl.SpeedFactor(tt.text, tt.target)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("SpeedFactor(%q, %v) = %v, want %v", tt.text, tt.target, got, tt.want)
			}
		})
	}
}

func TestSpeedFactorAlwaysWithinBounds(t *testing.T) {
	ctrl := timing.NewController(150, 0.8, 1.5)
	for words := 0; words < 60; words += 3 {
		text := strings.Repeat("x ", words)
		for _, target := range []float64{-1, 0, 0.01, 0.5, 1, 3, 10, 120} {
			got := ctrl.SpeedFactor(text, target)
			if got < 0.8 || got > 1.5 {
				t.Fatalf("factor %v out of bounds for words=%d target=%v", got, words, target)
			}
		}
	}
}

func TestNewControllerDefaults(t *testing.T) {
	ctrl := timing.NewController(0, 0, 0)
	if ctrl.WordsPerMinute != 150 || ctrl.MinSpeed != 0.8 || ctrl.MaxSpeed != 0.8 {
		t.Fatalf("unexpected defaults: %+v", ctrl)
	}
}

func TestWordCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hello world", 2},
		{"  spaced   out  ", 2},
		{"你好世界", 4},
		{"hello 世界", 3},
		{"— ...", 0},
		{"well — yes...", 2},
		{"2024 ?", 1},
	}
	for _, tt := range tests {
		if got := timing.WordCount(tt.text); got != tt.want {
			t.Fatalf("WordCount(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
