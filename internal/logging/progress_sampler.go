package logging

import (
	"math"
	"sync"
)

// ProgressSampler thins progress events for logging: the first event of each
// stage passes, then one event per step of completed fraction.
type ProgressSampler struct {
	mu    sync.Mutex
	step  float64
	stage string
	next  float64
}

// NewProgressSampler returns a sampler emitting every step (a fraction in
// (0,1]; anything else means 0.1).
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 || step > 1 {
		step = 0.1
	}
	return &ProgressSampler{step: step}
}

// ShouldLog reports whether the event should be logged. It is safe for
// concurrent use; a nil sampler logs everything.
func (s *ProgressSampler) ShouldLog(stage string, fraction float64) bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if stage != s.stage {
		s.stage = stage
		s.next = s.mark(fraction)
		return true
	}
	if fraction+1e-9 < s.next {
		return false
	}
	s.next = s.mark(fraction)
	return true
}

func (s *ProgressSampler) mark(fraction float64) float64 {
	return (math.Floor(fraction/s.step+1e-9) + 1) * s.step
}
