// Package failure defines the error taxonomy shared by reel's jobs and
// front-ends.
//
// Errors are tagged with a sentinel marker via Wrap so callers can classify
// them with errors.Is (or Classify for a short label) while still reaching
// the underlying cause. Diagnostic attaches the last lines of an external
// tool's error stream so fatal failures stay actionable.
package failure
