package api

import (
	"encoding/json"
	"errors"
	"time"

	"reel/internal/failure"
	"reel/internal/job"
	"reel/internal/merge"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ScanRequest starts a duplicate-filename scan.
type ScanRequest struct {
	Root string `json:"root"`
}

// MergeRequest starts a merge.
type MergeRequest struct {
	Inputs            []string `json:"inputs"`
	Output            string   `json:"output"`
	AllowIncompatible bool     `json:"allow_incompatible"`
	Sort              bool     `json:"sort"`
}

// Job describes a job in a transport-friendly format.
type Job struct {
	ID             string          `json:"id"`
	Kind           string          `json:"kind"`
	State          string          `json:"state"`
	Percent        float64         `json:"percent"`
	Phase          string          `json:"phase,omitempty"`
	Message        string          `json:"message,omitempty"`
	Error          string          `json:"error,omitempty"`
	Classification string          `json:"classification,omitempty"`
	Diagnostic     []string        `json:"diagnostic,omitempty"`
	// Verdict lists the mismatching inputs of a merge that failed as
	// incompatible_inputs. Resubmit with allow_incompatible to proceed.
	Verdict        *merge.Verdict  `json:"verdict,omitempty"`
	StartedAt      string          `json:"started_at,omitempty"`
	FinishedAt     string          `json:"finished_at,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// DependencyStatus captures availability of an external tool.
type DependencyStatus struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// HealthResponse reports server readiness.
type HealthResponse struct {
	Status       string             `json:"status"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error          string `json:"error"`
	Classification string `json:"classification,omitempty"`
}

// FromSnapshot converts a controller snapshot into its transport form.
func FromSnapshot(snap job.Snapshot) Job {
	out := Job{
		ID:             snap.JobID,
		Kind:           string(snap.Kind),
		State:          string(snap.State),
		Percent:        snap.Percent,
		Phase:          snap.Phase,
		Message:        snap.Message,
		Error:          snap.Error,
		Classification: snap.Classification,
		Diagnostic:     failure.DiagnosticTail(snap.Err),
		StartedAt:      formatTime(snap.StartedAt),
		FinishedAt:     formatTime(snap.FinishedAt),
	}
	var incompatible *merge.IncompatibleError
	if errors.As(snap.Err, &incompatible) {
		verdict := incompatible.Verdict
		out.Verdict = &verdict
	}
	if snap.Result != nil {
		if data, err := json.Marshal(snap.Result); err == nil {
			out.Result = data
		}
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
