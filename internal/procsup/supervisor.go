package procsup

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"reel/internal/logging"
)

var (
	// ErrLaunchFailed reports an executable that is missing or not runnable.
	ErrLaunchFailed = errors.New("launch failed")
	// ErrTerminated reports a process stopped by the supervisor.
	ErrTerminated = errors.New("terminated by supervisor")
)

const (
	defaultGrace     = 3 * time.Second
	defaultTailLines = 10
)

// Command describes a process to run.
type Command struct {
	Path string
	Args []string
	Dir  string
	// OnLine, when set, receives each diagnostic line as it is read.
	OnLine func(line string)
}

// ExitError reports a non-zero exit along with the last diagnostic lines.
type ExitError struct {
	Code int
	Tail []string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// TerminationState tracks the graceful-then-forced stop sequence.
type TerminationState int

const (
	// TerminationNone means no stop was requested.
	TerminationNone TerminationState = iota
	// TerminationGraceful means the graceful signal was sent and the grace
	// period is running.
	TerminationGraceful
	// TerminationExited means the process exited within the grace period.
	TerminationExited
	// TerminationKilled means the grace period lapsed and the process was killed.
	TerminationKilled
)

func (s TerminationState) String() string {
	switch s {
	case TerminationGraceful:
		return "graceful"
	case TerminationExited:
		return "exited"
	case TerminationKilled:
		return "killed"
	default:
		return "none"
	}
}

// Supervisor starts external processes and owns their termination.
type Supervisor struct {
	launcher  Launcher
	grace     time.Duration
	tailLines int
	logger    *slog.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLauncher injects a custom launcher (primarily for tests).
func WithLauncher(l Launcher) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.launcher = l
		}
	}
}

// WithGrace sets how long a graceful stop may take before a forced kill.
func WithGrace(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithTailLines sets how many trailing diagnostic lines are retained.
func WithTailLines(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.tailLines = n
		}
	}
}

// WithLogger sets the supervisor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Supervisor that launches real processes by default.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		launcher:  execLauncher{},
		grace:     defaultGrace,
		tailLines: defaultTailLines,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches cmd. When ctx is cancelled the process is terminated.
func (s *Supervisor) Start(ctx context.Context, cmd Command) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cmd.Path) == "" {
		return nil, fmt.Errorf("%w: empty command path", ErrLaunchFailed)
	}
	handle, err := s.launcher.Launch(cmd)
	if err != nil {
		return nil, err
	}

	p := &Process{
		handle:  handle,
		grace:   s.grace,
		tail:    newRing(s.tailLines),
		exited:  make(chan struct{}),
		drained: make(chan struct{}),
		done:    make(chan struct{}),
		logger:  logging.WithContext(ctx, s.logger).With(logging.Int("pid", handle.Pid())),
	}
	p.logger.Debug("process started", logging.String("path", cmd.Path), logging.Any("args", cmd.Args))

	go p.drain(cmd.OnLine)
	go p.wait()
	go func() {
		select {
		case <-ctx.Done():
			p.Terminate()
		case <-p.exited:
		}
	}()
	return p, nil
}

// Process is a supervised running process.
type Process struct {
	handle Handle
	grace  time.Duration
	tail   *ring
	logger *slog.Logger

	// exited closes when the process itself exits, drained when its
	// diagnostic stream reaches EOF, done when both are settled.
	exited  chan struct{}
	drained chan struct{}
	done    chan struct{}

	code    int
	waitErr error

	closeOnce sync.Once
	termOnce  sync.Once
	mu        sync.Mutex
	state     TerminationState
}

func (p *Process) drain(onLine func(string)) {
	defer close(p.drained)
	defer p.closeStderr()

	scanner := bufio.NewScanner(p.handle.Stderr())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLines)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p.tail.add(line)
		if onLine != nil {
			onLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		p.logger.Debug("diagnostic stream read failed", logging.Error(err))
	}
}

// wait records the exit status, then gives the diagnostic stream one grace
// period to reach EOF. Descendants that inherited the stream can keep it
// open past the exit; the stream is abandoned rather than waited on.
func (p *Process) wait() {
	defer close(p.done)

	p.code, p.waitErr = p.handle.Wait()
	close(p.exited)
	p.logger.Debug("process exited", logging.Int("exit_code", p.code))

	timer := time.NewTimer(p.grace)
	defer timer.Stop()
	select {
	case <-p.drained:
	case <-timer.C:
		logging.WarnWithContext(p.logger, "diagnostic stream still open after exit; abandoning", "process_stderr_abandoned",
			logging.Duration("grace", p.grace),
			logging.String(logging.FieldErrorHint, "a child process may still hold the stream"),
		)
		p.closeStderr()
	}
}

func (p *Process) closeStderr() {
	p.closeOnce.Do(func() {
		if closer, ok := p.handle.Stderr().(io.Closer); ok {
			_ = closer.Close()
		}
	})
}

// Done is closed once the process has exited and its diagnostic stream has
// been drained or abandoned.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Drained is closed when the diagnostic stream reaches EOF or is abandoned.
// The process may still be running.
func (p *Process) Drained() <-chan struct{} {
	return p.drained
}

// Tail returns the most recent diagnostic lines, oldest first.
func (p *Process) Tail() []string {
	return p.tail.lines()
}

// Wait blocks until the process exits. If timeout elapses first the process
// is terminated and ErrTerminated returned. A non-positive timeout waits
// indefinitely. Once the process has exited, Wait returns within one grace
// period even if the diagnostic stream is still held open.
func (p *Process) Wait(timeout time.Duration) (int, error) {
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-p.exited:
		case <-timer.C:
			p.logger.Warn("process did not exit in time; terminating",
				logging.Duration("timeout", timeout),
				logging.String(logging.FieldEventType, "process_wait_timeout"),
			)
			p.Terminate()
		}
	}
	<-p.done
	return p.result()
}

func (p *Process) result() (int, error) {
	if p.TerminationState() != TerminationNone {
		return p.code, ErrTerminated
	}
	if p.waitErr != nil {
		return p.code, p.waitErr
	}
	if p.code != 0 {
		return p.code, &ExitError{Code: p.code, Tail: p.Tail()}
	}
	return 0, nil
}

// Terminate stops the process: a graceful signal first, then a forced kill if
// it is still alive after the grace period. It returns once the process has
// exited. Repeated calls wait on the first sequence. A process that already
// exited is left alone and keeps TerminationNone.
func (p *Process) Terminate() TerminationState {
	p.termOnce.Do(p.terminate)
	<-p.done
	return p.TerminationState()
}

// TerminationState reports how far the stop sequence progressed.
func (p *Process) TerminationState() TerminationState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Process) setState(state TerminationState) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

func (p *Process) terminate() {
	select {
	case <-p.exited:
		return
	default:
	}

	p.setState(TerminationGraceful)
	if err := p.handle.Interrupt(); err != nil {
		p.logger.Debug("graceful stop signal failed", logging.Error(err))
	}

	timer := time.NewTimer(p.grace)
	defer timer.Stop()
	select {
	case <-p.exited:
		p.setState(TerminationExited)
		return
	case <-timer.C:
	}

	p.setState(TerminationKilled)
	logging.WarnWithContext(p.logger, "process ignored graceful stop; killing", "process_force_kill",
		logging.Duration("grace", p.grace),
		logging.String(logging.FieldImpact, "partial output may remain until cleanup"),
	)
	if err := p.handle.Kill(); err != nil {
		p.logger.Debug("kill failed", logging.Error(err))
	}
	<-p.exited
}

// scanLines splits on \n or \r so carriage-return progress updates arrive
// as separate lines.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

type ring struct {
	mu    sync.Mutex
	buf   []string
	next  int
	count int
}

func newRing(size int) *ring {
	if size <= 0 {
		size = defaultTailLines
	}
	return &ring{buf: make([]string, size)}
}

func (r *ring) add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = line
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *ring) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, r.count)
	start := (r.next - r.count + len(r.buf)) % len(r.buf)
	for i := range r.count {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}
