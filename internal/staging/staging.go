// Package staging owns per-job work directories under the staging root.
//
// Each dubbing job gets its own "job-<id>" directory, so concurrent jobs never
// share intermediate files. Directories left behind by a crash are reclaimed
// by CleanStale.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"redub/internal/logging"
)

// DirPrefix marks directories created by NewWorkDir.
const DirPrefix = "job-"

// NewWorkDir creates the work directory for jobID. It fails if the directory
// already exists.
func NewWorkDir(stagingDir, jobID string) (string, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return "", errors.New("staging dir not configured")
	}
	if strings.TrimSpace(jobID) == "" || strings.ContainsAny(jobID, `/\`) {
		return "", fmt.Errorf("invalid job id %q", jobID)
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	dir := filepath.Join(stagingDir, DirPrefix+jobID)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	return dir, nil
}

// JobIDFromDir returns the job id encoded in a work directory name.
func JobIDFromDir(name string) (string, bool) {
	name = filepath.Base(name)
	if !strings.HasPrefix(name, DirPrefix) || len(name) == len(DirPrefix) {
		return "", false
	}
	return strings.TrimPrefix(name, DirPrefix), true
}

// CleanStaleResult lists what CleanStale removed and what it could not.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// DirInfo describes one job work directory.
type DirInfo struct {
	JobID   string
	Path    string
	ModTime time.Time
	Size    int64
}

// scan returns the job work directories under stagingDir without sizes.
// A missing staging dir has none.
func scan(stagingDir string) ([]DirInfo, error) {
	if stagingDir = strings.TrimSpace(stagingDir); stagingDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(stagingDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var dirs []DirInfo
	for _, entry := range entries {
		id, ok := JobIDFromDir(entry.Name())
		if !ok || !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, DirInfo{JobID: id, Path: filepath.Join(stagingDir, entry.Name()), ModTime: info.ModTime()})
	}
	return dirs, nil
}

// ListDirectories returns the job work directories under stagingDir with
// their total file size.
func ListDirectories(stagingDir string) ([]DirInfo, error) {
	dirs, err := scan(stagingDir)
	for i := range dirs {
		dirs[i].Size = dirSize(dirs[i].Path)
	}
	return dirs, err
}

// CleanStale removes job work directories last modified more than maxAge
// ago. Directories of the ids in active are never touched.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, active map[string]struct{}, logger *slog.Logger) CleanStaleResult {
	var result CleanStaleResult
	dirs, err := scan(stagingDir)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		return result
	}

	logger = logging.WithContext(ctx, logger)
	cutoff := time.Now().Add(-maxAge)
	for _, dir := range dirs {
		if _, running := active[dir.JobID]; running || !dir.ModTime.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: err})
			logging.WarnWithContext(logger, "stale work directory not removed", "staging_cleanup_failed",
				logging.String("path", dir.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir.Path)
		logger.Info("stale work directory removed",
			logging.String("path", dir.Path),
			logging.String("stale_job_id", dir.JobID),
			logging.Duration("age", time.Since(dir.ModTime)),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return result
}

func dirSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && d.Type().IsRegular() {
			if info, infoErr := d.Info(); infoErr == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size
}
