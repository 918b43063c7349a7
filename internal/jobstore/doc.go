// Package jobstore records dubbing job history in SQLite.
//
// A row is created when a job starts, updated as stages report progress,
// and closed as completed, failed, or cancelled. Rows whose owning process
// died mid-run are reconciled to failed on the next CLI start so their work
// directories become eligible for cleanup.
package jobstore
