package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"reel/internal/config"
	"reel/internal/dupscan"
	"reel/internal/failure"
	"reel/internal/job"
	"reel/internal/logging"
	"reel/internal/merge"
)

var (
	// ErrJobNotFound reports an unknown job ID.
	ErrJobNotFound = errors.New("job not found")
	// ErrShuttingDown reports a submission after Shutdown began.
	ErrShuttingDown = errors.New("manager shutting down")
)

// Manager owns one job.Controller per submitted job and exposes the
// scan/merge/cancel/status surface shared by the CLI and the HTTP API.
type Manager struct {
	cfg       *config.Config
	logger    *slog.Logger
	observer  job.Observer
	mergeOpts []merge.Option

	mu      sync.RWMutex
	jobs    map[string]*job.Controller
	order   []string
	closing bool
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithObserver registers a lifecycle observer on every job controller.
func WithObserver(observer job.Observer) ManagerOption {
	return func(m *Manager) {
		m.observer = observer
	}
}

// WithMergeOptions passes options to every merge.Prepare call.
func WithMergeOptions(opts ...merge.Option) ManagerOption {
	return func(m *Manager) {
		m.mergeOpts = append(m.mergeOpts, opts...)
	}
}

// NewManager constructs a job manager.
func NewManager(cfg *config.Config, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "workflow"),
		jobs:   make(map[string]*job.Controller),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Scan validates root and starts a duplicate-filename scan.
func (m *Manager) Scan(root string) (string, error) {
	body, err := dupscan.New(root,
		dupscan.WithProgressEvery(m.cfg.Scan.ProgressEvery),
		dupscan.WithLogger(m.logger),
	)
	if err != nil {
		return "", err
	}
	return m.start(body)
}

// Merge validates req and starts a merge. Precondition failures return
// before any job exists.
func (m *Manager) Merge(ctx context.Context, req merge.Request) (string, error) {
	opts := append([]merge.Option{merge.WithLogger(m.logger)}, m.mergeOpts...)
	body, err := merge.Prepare(ctx, m.cfg, req, opts...)
	if err != nil {
		return "", err
	}
	return m.start(body)
}

func (m *Manager) start(body job.Body) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		return "", ErrShuttingDown
	}
	ctrl := job.NewController(job.WithLogger(m.logger), job.WithObserver(m.observer))
	id, err := ctrl.Start(body)
	if err != nil {
		return "", err
	}
	m.jobs[id] = ctrl
	m.order = append(m.order, id)
	return id, nil
}

// Controller returns the controller running id.
func (m *Manager) Controller(id string) (*job.Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctrl, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return ctrl, nil
}

// Cancel requests cancellation of id. Cancelling a finished job is a no-op.
func (m *Manager) Cancel(id string) error {
	ctrl, err := m.Controller(id)
	if err != nil {
		return err
	}
	ctrl.RequestCancel()
	return nil
}

// Status returns the latest snapshot for id.
func (m *Manager) Status(id string) (job.Snapshot, error) {
	ctrl, err := m.Controller(id)
	if err != nil {
		return job.Snapshot{}, err
	}
	return ctrl.Poll(), nil
}

// Wait blocks until id reaches a terminal state or ctx ends.
func (m *Manager) Wait(ctx context.Context, id string) (job.Snapshot, error) {
	ctrl, err := m.Controller(id)
	if err != nil {
		return job.Snapshot{}, err
	}
	return ctrl.Wait(ctx)
}

// List returns snapshots of every known job in submission order.
func (m *Manager) List() []job.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]job.Snapshot, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.jobs[id].Poll())
	}
	return out
}

// Forget drops a finished job from the registry.
func (m *Manager) Forget(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctrl, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if ctrl.Poll().State.Active() {
		return failure.Wrap(failure.ErrAlreadyRunning, "forget job", id+" is still active", nil)
	}
	delete(m.jobs, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Shutdown refuses new jobs, cancels active ones, and waits for them to
// finish cleaning up or for ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	ctrls := make([]*job.Controller, 0, len(m.jobs))
	for _, id := range m.order {
		ctrls = append(ctrls, m.jobs[id])
	}
	m.mu.Unlock()

	for _, ctrl := range ctrls {
		ctrl.RequestCancel()
	}
	for _, ctrl := range ctrls {
		if _, err := ctrl.Wait(ctx); err != nil {
			return err
		}
	}
	m.logger.Info("workflow stopped", logging.Int("jobs", len(ctrls)))
	return nil
}
