package testsupport

import (
	"context"
	"testing"

	"redub/internal/config"
	"redub/internal/jobstore"
)

// MustOpenStore opens a jobstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobstore.Store {
	t.Helper()

	store, err := jobstore.Open(cfg.JobStorePath())
	if err != nil {
		t.Fatalf("jobstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob inserts a running job for tests. The paths never contain id.
func NewJob(t testing.TB, store *jobstore.Store, id string) jobstore.Job {
	t.Helper()

	job := jobstore.Job{ID: id, VideoPath: "/videos/talk.mp4", OutputPath: "/out/talk.dubbed.mp4", Language: "es", Segments: 3}
	if err := store.Create(context.Background(), job); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}
