package main

import (
	"context"
	"testing"

	"redub/internal/dubbing"
	"redub/internal/jobstore"
	"redub/internal/testsupport"
	"redub/internal/transcript"
)

func TestStoreRecorderLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := storeRecorder{store: store}
	ctx := context.Background()

	if err := rec.Create(ctx, dubbing.RecordedJob{ID: "job-a", VideoPath: "/v.mp4", OutputPath: "/o.mp4", Language: "fr", Segments: 4}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := rec.Progress(ctx, "job-a", "synthesize", 0.4, "synthesizing speech"); err != nil {
		t.Fatalf("Progress: %v", err)
	}
	job, err := store.Get(ctx, "job-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != jobstore.StatusRunning || job.Stage != "synthesize" || job.Segments != 4 {
		t.Fatalf("unexpected running job: %+v", job)
	}

	err = rec.Complete(ctx, "job-a", dubbing.Result{Clips: 3, Skipped: 1, SpeakerSource: transcript.SourceHeuristic, BackgroundMode: transcript.BackgroundDucked})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	job, err = store.Get(ctx, "job-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != jobstore.StatusCompleted || job.Clips != 3 || job.Skipped != 1 {
		t.Fatalf("unexpected completed job: %+v", job)
	}
	if job.SpeakerSource != string(transcript.SourceHeuristic) || job.BackgroundMode != string(transcript.BackgroundDucked) {
		t.Fatalf("summary not stored: %+v", job)
	}
}

func TestStoreRecorderFailStatus(t *testing.T) {
	tests := []struct {
		name      string
		cancelled bool
		want      jobstore.Status
	}{
		{"failed", false, jobstore.StatusFailed},
		{"cancelled", true, jobstore.StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			store := testsupport.MustOpenStore(t, cfg)
			rec := storeRecorder{store: store}
			ctx := context.Background()
			if err := rec.Create(ctx, dubbing.RecordedJob{ID: "j"}); err != nil {
				t.Fatalf("Create: %v", err)
			}
			if err := rec.Fail(ctx, "j", "mux", "boom", tt.cancelled); err != nil {
				t.Fatalf("Fail: %v", err)
			}
			job, err := store.Get(ctx, "j")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if job.Status != tt.want || job.ErrorStage != "mux" || job.ErrorMessage != "boom" {
				t.Fatalf("unexpected job: %+v", job)
			}
		})
	}
}
