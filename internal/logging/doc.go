// Package logging assembles structured slog loggers and formatting helpers used
// across redub.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so stage code tags log lines with the job
// ID and stage name automatically. Degraded-mode decisions (heuristic speakers,
// ducked background, skipped segments) go through WarnWithContext so every
// warning carries an event type, a hint, and its impact.
package logging
