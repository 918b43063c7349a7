package main

import (
	"context"

	"redub/internal/dubbing"
	"redub/internal/jobstore"
)

// storeRecorder persists orchestrator events to the job history database.
type storeRecorder struct {
	store *jobstore.Store
}

func (r storeRecorder) Create(ctx context.Context, job dubbing.RecordedJob) error {
	return r.store.Create(ctx, jobstore.Job{
		ID:         job.ID,
		VideoPath:  job.VideoPath,
		OutputPath: job.OutputPath,
		Language:   job.Language,
		Segments:   job.Segments,
	})
}

func (r storeRecorder) Progress(ctx context.Context, id, stage string, fraction float64, message string) error {
	return r.store.Progress(ctx, id, stage, fraction, message)
}

func (r storeRecorder) Complete(ctx context.Context, id string, result dubbing.Result) error {
	return r.store.Complete(ctx, id, jobstore.Summary{
		Clips:          result.Clips,
		Skipped:        result.Skipped,
		SpeakerSource:  string(result.SpeakerSource),
		BackgroundMode: string(result.BackgroundMode),
	})
}

func (r storeRecorder) Fail(ctx context.Context, id, stage, message string, cancelled bool) error {
	return r.store.Fail(ctx, id, stage, message, failureStatus(cancelled))
}

func failureStatus(cancelled bool) jobstore.Status {
	if cancelled {
		return jobstore.StatusCancelled
	}
	return jobstore.StatusFailed
}
