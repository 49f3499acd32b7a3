package job

import (
	"context"
	"time"
)

// State is a job's lifecycle position. Idle is initial; Completed, Cancelled,
// and Failed are terminal and only leave via Controller.Reset.
type State string

const (
	StateIdle            State = "idle"
	StateRunning         State = "running"
	StateCancelRequested State = "cancel_requested"
	StateCompleted       State = "completed"
	StateCancelled       State = "cancelled"
	StateFailed          State = "failed"
)

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// Active reports whether a job body is still executing.
func (s State) Active() bool {
	return s == StateRunning || s == StateCancelRequested
}

// Kind names the job body type.
type Kind string

const (
	KindScan  Kind = "scan"
	KindMerge Kind = "merge"
)

// Reporter receives progress from a running job body. Percent is clamped to
// [0,100] and never moves backwards within a run.
type Reporter interface {
	Report(percent float64, phase, message string)
}

// Body is a cancellable unit of work. Run must return promptly once ctx is
// cancelled, after releasing everything it created, and report cancellation
// by returning an error that wraps context.Canceled.
type Body interface {
	Kind() Kind
	Run(ctx context.Context, progress Reporter) (any, error)
}

// Observer is notified of job lifecycle transitions.
type Observer interface {
	JobStarted(kind Kind)
	JobFinished(kind Kind, state State, elapsed time.Duration)
}

// Snapshot is an immutable copy of a controller's visible state.
type Snapshot struct {
	JobID          string    `json:"job_id,omitempty"`
	Kind           Kind      `json:"kind,omitempty"`
	State          State     `json:"state"`
	Percent        float64   `json:"percent"`
	Phase          string    `json:"phase,omitempty"`
	Message        string    `json:"message,omitempty"`
	Result         any       `json:"result,omitempty"`
	Err            error     `json:"-"`
	Error          string    `json:"error,omitempty"`
	Classification string    `json:"classification,omitempty"`
	StartedAt      time.Time `json:"started_at,omitzero"`
	FinishedAt     time.Time `json:"finished_at,omitzero"`
}
