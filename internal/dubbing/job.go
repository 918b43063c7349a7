package dubbing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"redub/internal/transcript"
)

// Stage names a pipeline step.
type Stage string

const (
	StageValidate     Stage = "validate"
	StageExtract      Stage = "extract"
	StageSpeakers     Stage = "speakers"
	StageVoiceSamples Stage = "voice_samples"
	StageSynthesize   Stage = "synthesize"
	StageBackground   Stage = "background"
	StageRemix        Stage = "remix"
	StageMux          Stage = "mux"
	StageFinalize     Stage = "finalize"
)

// stageStart is the progress fraction at which each stage begins.
var stageStart = map[Stage]float64{
	StageValidate:     0,
	StageExtract:      0.05,
	StageSpeakers:     0.12,
	StageVoiceSamples: 0.2,
	StageSynthesize:   0.3,
	StageBackground:   0.75,
	StageRemix:        0.85,
	StageMux:          0.92,
	StageFinalize:     0.97,
}

// ErrOutputBusy reports that another job is writing the same output path.
var ErrOutputBusy = errors.New("output path is in use by another job")

// StageError identifies the stage a job failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("dubbing failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage recorded in err, if any.
func FailedStage(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}

// Job is the input to one run. Segments carry translated text; ID is
// generated when empty.
type Job struct {
	ID          string
	VideoPath   string
	OutputPath  string
	Segments    []transcript.Segment
	Language    string
	KeepSamples bool
}

// Result describes a finished job.
type Result struct {
	JobID          string
	OutputPath     string
	Clips          int
	Skipped        int
	Speakers       int
	VoiceSamples   int
	SpeakerSource  transcript.SpeakerSource
	BackgroundMode transcript.BackgroundMode
	Language       string
	SamplesDir     string
	Elapsed        time.Duration
}

// ProgressFunc receives a human-readable message and the completed fraction
// in [0,1].
type ProgressFunc func(message string, fraction float64)

// jobState is the per-job arena. The sample map is filled before synthesis
// and only read afterwards.
type jobState struct {
	workDir    string
	audio      transcript.AudioFile
	segments   []transcript.Segment
	source     transcript.SpeakerSource
	samples    map[string]transcript.VoiceSample
	clips      []transcript.Clip
	skipped    int
	language   string
	background transcript.BackgroundTrack
	mixed      string
	muxed      string
}

// Recorder persists job history. Failures to record never fail a job.
type Recorder interface {
	Create(ctx context.Context, job RecordedJob) error
	Progress(ctx context.Context, id, stage string, fraction float64, message string) error
	Complete(ctx context.Context, id string, result Result) error
	Fail(ctx context.Context, id, stage, message string, cancelled bool) error
}

// RecordedJob is the subset of a Job a Recorder stores at start.
type RecordedJob struct {
	ID         string
	VideoPath  string
	OutputPath string
	Language   string
	Segments   int
}
