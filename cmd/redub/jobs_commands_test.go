package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"redub/internal/jobstore"
	"redub/internal/testsupport"
)

func TestJobsListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	store := testsupport.MustOpenStore(t, env.cfg)
	ctx := context.Background()

	done := testsupport.NewJob(t, store, "aaaaaaaa-1111-4000-8000-000000000001")
	if err := store.Complete(ctx, done.ID, jobstore.Summary{Clips: 3, Skipped: 1, SpeakerSource: "heuristic", BackgroundMode: "ducked"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	failed := testsupport.NewJob(t, store, "bbbbbbbb-2222-4000-8000-000000000002")
	if err := store.Fail(ctx, failed.ID, "synthesize", "no usable segments", jobstore.StatusFailed); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	out, _, err := runCLI(t, []string{"jobs"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, out, "aaaaaaaa")
	requireContains(t, out, "completed")
	requireContains(t, out, "bbbbbbbb")
	requireContains(t, out, "synthesize")
	requireContains(t, out, "talk.mp4")
	if strings.Contains(out, done.ID) || strings.Contains(out, failed.ID) {
		t.Fatalf("expected short ids in the table, got:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"jobs", "show", "aaaa"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, out, done.ID)
	requireContains(t, out, "heuristic")
	requireContains(t, out, "Spanish")

	if _, _, err := runCLI(t, []string{"jobs", "show", "zzzz"}, env.configPath); err == nil {
		t.Fatal("expected an error for an unknown job prefix")
	}
}

func TestJobsEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"jobs"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, out, "No jobs recorded")
}

func TestJobStage(t *testing.T) {
	tests := []struct {
		name string
		job  jobstore.Job
		want string
	}{
		{"running", jobstore.Job{Status: jobstore.StatusRunning, Stage: "remix", Progress: 0.85}, "remix  85%"},
		{"failed", jobstore.Job{Status: jobstore.StatusFailed, ErrorStage: "mux"}, "mux"},
		{"completed", jobstore.Job{Status: jobstore.StatusCompleted}, "-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jobStage(tt.job); got != tt.want {
				t.Fatalf("jobStage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintJobShowsDuration(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	finished := created.Add(90 * time.Second)
	var b strings.Builder
	printJob(&b, &jobstore.Job{ID: "x", Status: jobstore.StatusCompleted, CreatedAt: created, FinishedAt: &finished}, finished)
	requireContains(t, b.String(), "1m30s")
}
