// Package transcript defines the data model shared by every dubbing stage:
// timed transcript segments, diarization turns, voice samples, synthesized
// clips, and the prepared background track.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoSegments reports an empty segment list.
var ErrNoSegments = errors.New("no transcript segments")

// ErrNoTranslatedText reports a segment list with nothing to speak.
var ErrNoTranslatedText = errors.New("no translated segments")

// Segment is a contiguous timed span of transcript text. Translated is a
// parallel field; Text keeps the source-language wording.
type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Translated string  `json:"translated_text,omitempty"`
	SpeakerID  string  `json:"speaker_id,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Duration returns End - Start.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// SpeechText returns the text to synthesize, which is the translated variant.
func (s Segment) SpeechText() string {
	return strings.TrimSpace(s.Translated)
}

// Validate checks the timing invariant.
func (s Segment) Validate() error {
	if s.Start < 0 {
		return fmt.Errorf("segment start %.3f is negative", s.Start)
	}
	if !(s.Start < s.End) {
		return fmt.Errorf("segment start %.3f must precede end %.3f", s.Start, s.End)
	}
	return nil
}

// ValidateSegments rejects empty lists, broken timing, and lists where no
// segment carries translated text.
func ValidateSegments(segments []Segment) error {
	if len(segments) == 0 {
		return ErrNoSegments
	}
	translated := false
	for i, seg := range segments {
		if err := seg.Validate(); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		if seg.SpeechText() != "" {
			translated = true
		}
	}
	if !translated {
		return ErrNoTranslatedText
	}
	return nil
}

// Turn is a timed span attributed to one speaker by diarization.
type Turn struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Label string  `json:"speaker"`
}

// SpeakerSource records whether speaker labels came from diarization or the
// gap heuristic.
type SpeakerSource string

const (
	SourceDiarized  SpeakerSource = "diarized"
	SourceHeuristic SpeakerSource = "heuristic"
)

// VoiceSample is a reference recording used for voice cloning.
type VoiceSample struct {
	SpeakerID string
	AudioPath string
	Duration  float64
}

// Clip is one synthesized utterance. Start and End are copied from the
// originating segment; the audio itself may be shorter or longer.
type Clip struct {
	AudioPath   string
	Start       float64
	End         float64
	SpeakerID   string
	SpeedFactor float64
}

// BackgroundMode identifies how the background track was produced.
type BackgroundMode string

const (
	BackgroundDucked    BackgroundMode = "ducked"
	BackgroundSeparated BackgroundMode = "separated"
)

// BackgroundTrack is the prepared soundtrack the dub is mixed onto.
type BackgroundTrack struct {
	AudioPath string
	Mode      BackgroundMode
}

// AudioFile is the metadata tuple exchanged with external tools.
type AudioFile struct {
	Path       string  `json:"path"`
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
}

// segmentFile is the on-disk segment document. A bare JSON array is accepted too.
type segmentFile struct {
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// LoadSegments reads segments from a JSON file. It returns the document's
// language hint when present.
func LoadSegments(path string) ([]Segment, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read segments: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var segments []Segment
		if err := json.Unmarshal(data, &segments); err != nil {
			return nil, "", fmt.Errorf("parse segments: %w", err)
		}
		return segments, "", nil
	}
	var doc segmentFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, "", fmt.Errorf("parse segments: %w", err)
	}
	return doc.Segments, strings.TrimSpace(doc.Language), nil
}

// SaveSegments writes segments as an indented JSON document.
func SaveSegments(path, language string, segments []Segment) error {
	data, err := json.MarshalIndent(segmentFile{Language: language, Segments: segments}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write segments: %w", err)
	}
	return nil
}
