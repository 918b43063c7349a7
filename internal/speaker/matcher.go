// Package speaker assigns speaker labels to transcript segments.
//
// Labels come from diarization turns by maximal temporal overlap. When the
// diarizer is missing, fails, or returns nothing, a gap heuristic cycles
// through a small pool of synthetic speakers instead; the result carries a
// SpeakerSource so downstream stages and logs can tell the two apart.
package speaker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"redub/internal/logging"
	"redub/internal/transcript"
)

// Diarizer produces speaker-labelled turns for an audio file.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string) ([]transcript.Turn, error)
}

// Assignment is the outcome of speaker resolution.
type Assignment struct {
	Segments []transcript.Segment
	Source   transcript.SpeakerSource
}

// Speakers returns the distinct assigned speaker IDs in first-appearance order.
func (a Assignment) Speakers() []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, seg := range a.Segments {
		if seg.SpeakerID == "" {
			continue
		}
		if _, ok := seen[seg.SpeakerID]; ok {
			continue
		}
		seen[seg.SpeakerID] = struct{}{}
		ids = append(ids, seg.SpeakerID)
	}
	return ids
}

// Matcher resolves segment speakers.
type Matcher struct {
	GapSeconds float64
	Slots      int
	logger     *slog.Logger
}

// NewMatcher returns a matcher using the given gap threshold and slot pool.
func NewMatcher(gapSeconds float64, slots int, logger *slog.Logger) *Matcher {
	if gapSeconds <= 0 {
		gapSeconds = 2
	}
	if slots < 1 {
		slots = 4
	}
	return &Matcher{GapSeconds: gapSeconds, Slots: slots, logger: logging.NewComponentLogger(logger, "speaker")}
}

// Resolve diarizes audioPath when a diarizer is available and assigns labels.
// Diarizer failure degrades to the heuristic; it never fails the job.
func (m *Matcher) Resolve(ctx context.Context, diarizer Diarizer, audioPath string, segments []transcript.Segment) Assignment {
	logger := logging.WithContext(ctx, m.logger)
	if diarizer == nil {
		logging.WarnWithContext(logger, "diarization unavailable; using gap heuristic", "speaker_heuristic",
			logging.String(logging.FieldErrorHint, "set speakers.hf_token (or HF_TOKEN) and enable speakers.diarization"),
			logging.String(logging.FieldImpact, "speaker voices assigned by pause length, not by voice"),
		)
		return m.Heuristic(segments)
	}
	turns, err := diarizer.Diarize(ctx, audioPath)
	if err != nil || len(turns) == 0 {
		attrs := []logging.Attr{
			logging.Int("turns", len(turns)),
			logging.String(logging.FieldErrorHint, "check the diarization model credentials and the uvx environment"),
			logging.String(logging.FieldImpact, "speaker voices assigned by pause length, not by voice"),
		}
		if err != nil {
			attrs = append(attrs, logging.Error(err))
		}
		logging.WarnWithContext(logger, "diarization failed; using gap heuristic", "speaker_heuristic", attrs...)
		return m.Heuristic(segments)
	}
	assignment := m.Assign(segments, turns)
	logger.Info("speakers assigned from diarization",
		logging.Int("turns", len(turns)),
		logging.Int("speakers", len(assignment.Speakers())),
		logging.String(logging.FieldEventType, "speaker_diarized"),
	)
	return assignment
}

// Assign labels every segment with its best-overlapping turn label. Segments
// with no overlapping turn keep an empty speaker ID.
func (m *Matcher) Assign(segments []transcript.Segment, turns []transcript.Turn) Assignment {
	out := make([]transcript.Segment, len(segments))
	for i, seg := range segments {
		out[i] = seg
		label, ok := Match(seg, turns)
		if ok {
			out[i].SpeakerID = label
		} else {
			out[i].SpeakerID = ""
		}
	}
	return Assignment{Segments: out, Source: transcript.SourceDiarized}
}

// Match returns the label with the greatest accumulated overlap with seg.
// Ties go to the label whose overlapping turn starts earliest.
func Match(seg transcript.Segment, turns []transcript.Turn) (string, bool) {
	type score struct {
		overlap  float64
		earliest float64
	}
	scores := map[string]*score{}
	var order []string
	for _, turn := range turns {
		overlap := math.Min(turn.End, seg.End) - math.Max(turn.Start, seg.Start)
		if overlap <= 0 || turn.Label == "" {
			continue
		}
		s, ok := scores[turn.Label]
		if !ok {
			s = &score{earliest: turn.Start}
			scores[turn.Label] = s
			order = append(order, turn.Label)
		}
		s.overlap += overlap
		if turn.Start < s.earliest {
			s.earliest = turn.Start
		}
	}
	best := ""
	for _, label := range order {
		if best == "" {
			best = label
			continue
		}
		cur, top := scores[label], scores[best]
		if cur.overlap > top.overlap || (cur.overlap == top.overlap && cur.earliest < top.earliest) {
			best = label
		}
	}
	return best, best != ""
}

// Heuristic assigns synthetic speakers: the first segment is speaker_1 and
// the slot advances (cycling) whenever the pause before a segment exceeds
// the gap threshold.
func (m *Matcher) Heuristic(segments []transcript.Segment) Assignment {
	out := make([]transcript.Segment, len(segments))
	copy(out, segments)

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return out[order[a]].Start < out[order[b]].Start })

	slot := 0
	prevEnd := math.Inf(-1)
	for n, idx := range order {
		if n > 0 && out[idx].Start-prevEnd > m.GapSeconds {
			slot = (slot + 1) % m.Slots
		}
		out[idx].SpeakerID = HeuristicID(slot)
		if out[idx].End > prevEnd {
			prevEnd = out[idx].End
		}
	}
	return Assignment{Segments: out, Source: transcript.SourceHeuristic}
}

// HeuristicID names the synthetic speaker for a zero-based slot.
func HeuristicID(slot int) string {
	return fmt.Sprintf("speaker_%d", slot+1)
}
