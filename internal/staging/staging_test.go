package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"redub/internal/logging"
)

func makeDir(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", name, err)
	}
	if age > 0 {
		when := time.Now().Add(-age)
		if err := os.Chtimes(dir, when, when); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	return dir
}

func TestNewWorkDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "staging")
	dir, err := NewWorkDir(root, "abc123")
	if err != nil {
		t.Fatalf("NewWorkDir: %v", err)
	}
	if dir != filepath.Join(root, "job-abc123") {
		t.Fatalf("dir = %q", dir)
	}
	if _, err := NewWorkDir(root, "abc123"); err == nil {
		t.Fatal("expected error for existing work dir")
	}
	for _, bad := range []string{"", " ", "../escape"} {
		if _, err := NewWorkDir(root, bad); err == nil {
			t.Fatalf("expected error for id %q", bad)
		}
	}
	if _, err := NewWorkDir("", "id"); err == nil {
		t.Fatal("expected error for empty staging dir")
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, nil, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldJobDirectories(t *testing.T) {
	root := t.TempDir()
	old := makeDir(t, root, "job-old", 2*time.Hour)
	recent := makeDir(t, root, "job-recent", 0)
	running := makeDir(t, root, "job-running", 2*time.Hour)
	foreign := makeDir(t, root, "keep-me", 2*time.Hour)

	result := CleanStale(context.Background(), root, time.Hour, map[string]struct{}{"running": {}}, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != old {
		t.Fatalf("removed = %v, want [%s]", result.Removed, old)
	}
	for _, dir := range []string{recent, running, foreign} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("%s should still exist: %v", dir, err)
		}
	}
}

func TestCleanStaleIgnoresFiles(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "job-file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	when := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(file, when, when); err != nil {
		t.Fatal(err)
	}
	result := CleanStale(context.Background(), root, time.Hour, nil, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("removed files: %v", result.Removed)
	}
}

func TestListDirectories(t *testing.T) {
	root := t.TempDir()
	dir := makeDir(t, root, "job-one", 0)
	makeDir(t, root, "other", 0)
	if err := os.WriteFile(filepath.Join(dir, "audio.wav"), make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	dirs, err := ListDirectories(root)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 1 || dirs[0].JobID != "one" || dirs[0].Size != 100 {
		t.Fatalf("dirs = %+v", dirs)
	}
	missing, err := ListDirectories(filepath.Join(root, "missing"))
	if err != nil || missing != nil {
		t.Fatalf("missing root = %v, %v", missing, err)
	}
}

func TestJobIDFromDir(t *testing.T) {
	if id, ok := JobIDFromDir("/x/job-42"); !ok || id != "42" {
		t.Fatalf("JobIDFromDir = %q %v", id, ok)
	}
	if _, ok := JobIDFromDir("job-"); ok {
		t.Fatal("bare prefix should not parse")
	}
}
