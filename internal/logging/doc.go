// Package logging assembles structured slog loggers and formatting helpers used
// across reel.
//
// It owns the configurable console/JSON handlers, tees terminal output into a
// JSON log file when a log directory is configured, and exposes context-aware
// helpers so job code can tag log lines with job IDs, kinds, and request IDs.
// ProgressSampler keeps long-running jobs from flooding the log with progress
// updates. A no-op logger is provided for tests and wiring code that cannot
// fail.
package logging
