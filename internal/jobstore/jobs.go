package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ErrNotFound reports an unknown job id.
var ErrNotFound = errors.New("job not found")

// Job is one persisted dubbing run.
type Job struct {
	ID             string
	VideoPath      string
	OutputPath     string
	Language       string
	Status         Status
	Stage          string
	Progress       float64
	Message        string
	Segments       int
	Clips          int
	Skipped        int
	SpeakerSource  string
	BackgroundMode string
	ErrorStage     string
	ErrorMessage   string
	PID            int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	FinishedAt     *time.Time
}

// Summary is what a completed job reports.
type Summary struct {
	Clips          int
	Skipped        int
	SpeakerSource  string
	BackgroundMode string
}

const jobColumns = "id, video_path, output_path, language, status, stage, progress, message, segments, clips, skipped, speaker_source, background_mode, error_stage, error_message, pid, created_at, updated_at, finished_at"

// Create inserts a running job owned by the current process.
func (s *Store) Create(ctx context.Context, job Job) error {
	if strings.TrimSpace(job.ID) == "" {
		return errors.New("job id is required")
	}
	now := time.Now()
	if job.PID == 0 {
		job.PID = os.Getpid()
	}
	_, err := s.exec(ctx,
		`INSERT INTO jobs (id, video_path, output_path, language, status, progress, segments, pid, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		job.ID, job.VideoPath, job.OutputPath, nullableString(job.Language), StatusRunning,
		job.Segments, job.PID, formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Progress records the current stage and completion fraction.
func (s *Store) Progress(ctx context.Context, id, stage string, fraction float64, message string) error {
	n, err := s.exec(ctx,
		`UPDATE jobs SET stage = ?, progress = ?, message = ?, updated_at = ? WHERE id = ? AND status = ?`,
		nullableString(stage), fraction, nullableString(message), formatTime(time.Now()), id, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Complete marks a job as finished successfully.
func (s *Store) Complete(ctx context.Context, id string, summary Summary) error {
	now := formatTime(time.Now())
	n, err := s.exec(ctx,
		`UPDATE jobs SET status = ?, progress = 1, clips = ?, skipped = ?, speaker_source = ?, background_mode = ?,
             message = ?, updated_at = ?, finished_at = ?
         WHERE id = ?`,
		StatusCompleted, summary.Clips, summary.Skipped, nullableString(summary.SpeakerSource),
		nullableString(summary.BackgroundMode), "completed", now, now, id,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Fail marks a job as failed or cancelled at stage.
func (s *Store) Fail(ctx context.Context, id, stage, message string, status Status) error {
	if status != StatusCancelled {
		status = StatusFailed
	}
	now := formatTime(time.Now())
	n, err := s.exec(ctx,
		`UPDATE jobs SET status = ?, error_stage = ?, error_message = ?, updated_at = ?, finished_at = ? WHERE id = ?`,
		status, nullableString(stage), nullableString(message), now, now, id,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Get returns one job. A missing id yields ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// FindByPrefix resolves a short job id (as printed by the CLI).
func (s *Store) FindByPrefix(ctx context.Context, prefix string) (*Job, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id LIKE ? ORDER BY created_at DESC LIMIT 2`, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("find job: %w", err)
	}
	jobs, err := collect(rows)
	if err != nil {
		return nil, err
	}
	switch len(jobs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return &jobs[0], nil
	default:
		return nil, fmt.Errorf("job id prefix %q is ambiguous", prefix)
	}
}

// List returns the most recent jobs first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return collect(rows)
}

// ActiveIDs returns the ids of running jobs.
func (s *Store) ActiveIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM jobs WHERE status = ?`, StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("active jobs: %w", err)
	}
	defer rows.Close()
	ids := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// ReconcileAbandoned fails running jobs whose owning process no longer
// exists and returns how many were updated.
func (s *Store) ReconcileAbandoned(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, pid FROM jobs WHERE status = ?`, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("running jobs: %w", err)
	}
	type owner struct {
		id  string
		pid int
	}
	var owners []owner
	for rows.Next() {
		var o owner
		if err := rows.Scan(&o.id, &o.pid); err != nil {
			rows.Close()
			return 0, err
		}
		owners = append(owners, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	count := 0
	for _, o := range owners {
		if processAlive(o.pid) {
			continue
		}
		if err := s.Fail(ctx, o.id, "", "abandoned: owning process exited", StatusFailed); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func collect(rows *sql.Rows) ([]Job, error) {
	defer rows.Close()
	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job            Job
		status         string
		language       sql.NullString
		stage          sql.NullString
		message        sql.NullString
		speakerSource  sql.NullString
		backgroundMode sql.NullString
		errorStage     sql.NullString
		errorMessage   sql.NullString
		createdRaw     string
		updatedRaw     string
		finishedRaw    sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.VideoPath,
		&job.OutputPath,
		&language,
		&status,
		&stage,
		&job.Progress,
		&message,
		&job.Segments,
		&job.Clips,
		&job.Skipped,
		&speakerSource,
		&backgroundMode,
		&errorStage,
		&errorMessage,
		&job.PID,
		&createdRaw,
		&updatedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	job.Status = Status(status)
	job.Language = language.String
	job.Stage = stage.String
	job.Message = message.String
	job.SpeakerSource = speakerSource.String
	job.BackgroundMode = backgroundMode.String
	job.ErrorStage = errorStage.String
	job.ErrorMessage = errorMessage.String
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &finished
		}
	}
	return &job, nil
}
