package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"reel/internal/failure"
	"reel/internal/logging"
)

// Controller runs at most one job body at a time on its own goroutine and
// exposes its progress without ever blocking the caller.
type Controller struct {
	mu          sync.Mutex
	logger      *slog.Logger
	observer    Observer
	newID       func() string
	snap        Snapshot
	current     *run
	subscribers []chan Snapshot
}

type run struct {
	id      string
	cancel  context.CancelFunc
	done    chan struct{}
	sampler *logging.ProgressSampler
	logger  *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers a lifecycle observer such as the metrics recorder.
func WithObserver(observer Observer) Option {
	return func(c *Controller) {
		c.observer = observer
	}
}

// WithIDGenerator overrides job ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewController constructs an idle controller.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		logger: logging.NewNop(),
		newID:  uuid.NewString,
		snap:   Snapshot{State: StateIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "job")
	return c
}

// Start launches body on a new goroutine and returns its job ID immediately.
// It fails with failure.ErrAlreadyRunning while a previous body is active.
func (c *Controller) Start(body Body) (string, error) {
	if body == nil {
		return "", failure.Wrap(failure.ErrInvalidInput, "start job", "no job body", nil)
	}

	c.mu.Lock()
	if c.snap.State.Active() {
		id := c.snap.JobID
		c.mu.Unlock()
		return "", failure.Wrap(failure.ErrAlreadyRunning, "start job", fmt.Sprintf("job %s is still active", id), nil)
	}

	id := c.newID()
	kind := body.Kind()
	ctx := logging.WithJobKind(logging.WithJobID(context.Background(), id), string(kind))
	ctx, cancel := context.WithCancel(ctx)
	r := &run{
		id:      id,
		cancel:  cancel,
		done:    make(chan struct{}),
		sampler: logging.NewProgressSampler(10),
		logger:  logging.WithContext(ctx, c.logger),
	}
	c.current = r
	c.snap = Snapshot{
		JobID:     id,
		Kind:      kind,
		State:     StateRunning,
		StartedAt: time.Now(),
	}
	c.publishLocked()
	c.mu.Unlock()

	r.logger.Info("job started")
	if c.observer != nil {
		c.observer.JobStarted(kind)
	}

	go func() {
		defer close(r.done)
		result, err := body.Run(ctx, &reporter{controller: c, run: r})
		c.finish(r, result, err)
	}()
	return id, nil
}

// RequestCancel asks the running body to stop. It does not wait and has no
// effect unless the job is Running.
func (c *Controller) RequestCancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.State != StateRunning || c.current == nil {
		return
	}
	c.current.cancel()
	c.snap.State = StateCancelRequested
	c.current.logger.Info("job cancellation requested")
	c.publishLocked()
}

// Poll returns the latest snapshot without blocking.
func (c *Controller) Poll() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Subscribe returns a channel that always holds the most recent snapshot.
// Intermediate snapshots may be skipped; the terminal snapshot is delivered
// exactly once, after which the channel is closed.
func (c *Controller) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	ch <- c.snap
	if c.snap.State.Terminal() {
		close(ch)
		return ch
	}
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Done returns a channel closed once the current job reaches a terminal
// state. With no job started it is already closed.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return c.current.done
}

// Wait blocks until the current job finishes or ctx ends.
func (c *Controller) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-c.Done():
		return c.Poll(), nil
	case <-ctx.Done():
		return c.Poll(), ctx.Err()
	}
}

// Reset returns a finished controller to Idle so the next Start begins clean.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.State.Active() {
		return failure.Wrap(failure.ErrAlreadyRunning, "reset job", "job is still active", nil)
	}
	c.current = nil
	c.snap = Snapshot{State: StateIdle}
	return nil
}

func (c *Controller) finish(r *run, result any, err error) {
	r.cancel()

	c.mu.Lock()
	snap := c.snap
	snap.FinishedAt = time.Now()
	switch {
	case err == nil:
		snap.State = StateCompleted
		snap.Percent = 100
		snap.Result = result
	case errors.Is(err, context.Canceled):
		snap.State = StateCancelled
		snap.Result = nil
		snap.Classification = failure.ClassCancelled
	default:
		snap.State = StateFailed
		snap.Result = result
		snap.Err = err
		snap.Error = err.Error()
		snap.Classification = failure.Classify(err)
	}
	c.snap = snap
	c.publishLocked()
	for _, ch := range c.subscribers {
		close(ch)
	}
	c.subscribers = nil
	c.mu.Unlock()

	elapsed := snap.FinishedAt.Sub(snap.StartedAt)
	switch snap.State {
	case StateFailed:
		logging.ErrorWithContext(r.logger, "job failed", "job_failed",
			logging.String("classification", snap.Classification),
			logging.Duration("elapsed", elapsed),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the error and diagnostic output, then retry"),
		)
	default:
		r.logger.Info("job finished",
			logging.String("state", string(snap.State)),
			logging.Duration("elapsed", elapsed),
		)
	}
	if c.observer != nil {
		c.observer.JobFinished(snap.Kind, snap.State, elapsed)
	}
}

// publishLocked replaces whatever each subscriber has not yet read with the
// current snapshot. Callers hold c.mu, which makes this the only sender.
func (c *Controller) publishLocked() {
	for _, ch := range c.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- c.snap:
		default:
		}
	}
}

type reporter struct {
	controller *Controller
	run        *run
}

func (r *reporter) Report(percent float64, phase, message string) {
	c := r.controller
	c.mu.Lock()
	if c.current != r.run || !c.snap.State.Active() {
		c.mu.Unlock()
		return
	}
	percent = max(0, min(100, percent))
	if math.IsNaN(percent) || percent < c.snap.Percent {
		percent = c.snap.Percent
	}
	c.snap.Percent = percent
	if phase != "" {
		c.snap.Phase = phase
	}
	c.snap.Message = message
	c.publishLocked()
	c.mu.Unlock()

	if r.run.sampler.ShouldLog(percent, phase) {
		r.run.logger.Info("job progress",
			logging.String(logging.FieldPhase, phase),
			logging.Float64("percent", percent),
			logging.String("detail", message),
		)
	}
}
