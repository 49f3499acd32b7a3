package procsup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeHandle struct {
	stderrR *io.PipeReader
	stderrW *io.PipeWriter
	exited  chan struct{}
	once    sync.Once
	code    int

	// keepStderr leaves the stream open on exit, as when a child process
	// inherited it.
	keepStderr      bool
	ignoreInterrupt bool
	interrupts      atomic.Int32
	kills           atomic.Int32
}

func newFakeHandle(ignoreInterrupt bool) *fakeHandle {
	r, w := io.Pipe()
	return &fakeHandle{stderrR: r, stderrW: w, exited: make(chan struct{}), ignoreInterrupt: ignoreInterrupt}
}

func (h *fakeHandle) exit(code int) {
	h.once.Do(func() {
		h.code = code
		if !h.keepStderr {
			h.closeStderr()
		}
		close(h.exited)
	})
}

func (h *fakeHandle) closeStderr() { _ = h.stderrW.Close() }

func (h *fakeHandle) Stderr() io.Reader { return h.stderrR }

func (h *fakeHandle) Interrupt() error {
	h.interrupts.Add(1)
	if !h.ignoreInterrupt {
		h.exit(-1)
	}
	return nil
}

func (h *fakeHandle) Kill() error {
	h.kills.Add(1)
	h.exit(-1)
	return nil
}

func (h *fakeHandle) Wait() (int, error) {
	<-h.exited
	return h.code, nil
}

func (h *fakeHandle) Pid() int { return 4242 }

type fakeLauncher struct {
	handle *fakeHandle
	err    error
	got    Command
}

func (l *fakeLauncher) Launch(cmd Command) (Handle, error) {
	l.got = cmd
	if l.err != nil {
		return nil, l.err
	}
	return l.handle, nil
}

func startFake(t *testing.T, handle *fakeHandle, onLine func(string), opts ...Option) *Process {
	t.Helper()
	opts = append([]Option{WithLauncher(&fakeLauncher{handle: handle}), WithGrace(20 * time.Millisecond)}, opts...)
	sup := New(opts...)
	proc, err := sup.Start(context.Background(), Command{Path: "ffmpeg", OnLine: onLine})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	return proc
}

func TestTailKeepsMostRecentLines(t *testing.T) {
	handle := newFakeHandle(false)
	var mu sync.Mutex
	var seen []string
	proc := startFake(t, handle, func(line string) {
		mu.Lock()
		seen = append(seen, line)
		mu.Unlock()
	}, WithTailLines(3))

	fmt.Fprint(handle.stderrW, "frame=1\rframe=2\r\n")
	for i := 1; i <= 4; i++ {
		fmt.Fprintf(handle.stderrW, "line %d\n", i)
	}
	handle.exit(1)

	code, err := proc.Wait(time.Second)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if code != 1 || exitErr.Code != 1 {
		t.Fatalf("unexpected exit code %d / %d", code, exitErr.Code)
	}
	want := []string{"line 2", "line 3", "line 4"}
	if !slices.Equal(exitErr.Tail, want) || !slices.Equal(proc.Tail(), want) {
		t.Fatalf("unexpected tail %v", exitErr.Tail)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 6 || seen[0] != "frame=1" || seen[1] != "frame=2" {
		t.Fatalf("unexpected streamed lines %v", seen)
	}
	if proc.TerminationState() != TerminationNone {
		t.Fatalf("natural exit must not record termination, got %s", proc.TerminationState())
	}
}

func TestCleanExitReturnsNil(t *testing.T) {
	handle := newFakeHandle(false)
	proc := startFake(t, handle, nil)
	handle.exit(0)
	if code, err := proc.Wait(0); err != nil || code != 0 {
		t.Fatalf("expected clean exit, got %d %v", code, err)
	}
}

func TestTerminateGracefulExit(t *testing.T) {
	handle := newFakeHandle(false)
	proc := startFake(t, handle, nil)

	if state := proc.Terminate(); state != TerminationExited {
		t.Fatalf("expected graceful exit, got %s", state)
	}
	if handle.kills.Load() != 0 {
		t.Fatal("responsive process must not be killed")
	}
	if _, err := proc.Wait(0); !errors.Is(err, ErrTerminated) {
		t.Fatalf("expected ErrTerminated, got %v", err)
	}
}

func TestTerminateEscalatesToKill(t *testing.T) {
	handle := newFakeHandle(true)
	proc := startFake(t, handle, nil)

	start := time.Now()
	if state := proc.Terminate(); state != TerminationKilled {
		t.Fatalf("expected forced kill, got %s", state)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("kill happened before grace period elapsed: %s", elapsed)
	}
	if handle.interrupts.Load() != 1 || handle.kills.Load() != 1 {
		t.Fatalf("expected one interrupt and one kill, got %d/%d", handle.interrupts.Load(), handle.kills.Load())
	}

	if state := proc.Terminate(); state != TerminationKilled {
		t.Fatalf("second terminate changed state to %s", state)
	}
	if handle.interrupts.Load() != 1 {
		t.Fatal("terminate must be idempotent")
	}
}

func TestWaitTimeoutEscalates(t *testing.T) {
	handle := newFakeHandle(true)
	proc := startFake(t, handle, nil)

	if _, err := proc.Wait(10 * time.Millisecond); !errors.Is(err, ErrTerminated) {
		t.Fatalf("expected ErrTerminated after wait timeout, got %v", err)
	}
	if proc.TerminationState() != TerminationKilled {
		t.Fatalf("expected killed state, got %s", proc.TerminationState())
	}
}

func TestWaitReturnsWhenStderrOutlivesProcess(t *testing.T) {
	handle := newFakeHandle(false)
	handle.keepStderr = true
	proc := startFake(t, handle, nil)
	handle.exit(0)

	start := time.Now()
	code, err := proc.Wait(time.Second)
	if err != nil || code != 0 {
		t.Fatalf("expected clean exit, got %d %v", code, err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Wait blocked on the open diagnostic stream for %s", elapsed)
	}
	if proc.TerminationState() != TerminationNone {
		t.Fatalf("exited process must not record termination, got %s", proc.TerminationState())
	}
	select {
	case <-proc.Drained():
	default:
		t.Fatal("abandoned diagnostic stream must count as drained")
	}
}

func TestTerminateAfterExitLeavesResult(t *testing.T) {
	handle := newFakeHandle(false)
	handle.keepStderr = true
	proc := startFake(t, handle, nil)
	handle.exit(0)
	<-proc.Done()

	if state := proc.Terminate(); state != TerminationNone {
		t.Fatalf("terminate after exit changed state to %s", state)
	}
	if handle.interrupts.Load() != 0 || handle.kills.Load() != 0 {
		t.Fatal("exited process must not be signalled")
	}
	if _, err := proc.Wait(0); err != nil {
		t.Fatalf("expected natural result, got %v", err)
	}
}

func TestWaitTimeoutAfterStderrCloses(t *testing.T) {
	handle := newFakeHandle(true)
	proc := startFake(t, handle, nil)
	handle.closeStderr()
	<-proc.Drained()

	if _, err := proc.Wait(10 * time.Millisecond); !errors.Is(err, ErrTerminated) {
		t.Fatalf("expected ErrTerminated, got %v", err)
	}
	if handle.kills.Load() != 1 {
		t.Fatalf("expected a forced kill, got %d", handle.kills.Load())
	}
}

func TestContextCancelTerminates(t *testing.T) {
	handle := newFakeHandle(false)
	ctx, cancel := context.WithCancel(context.Background())
	sup := New(WithLauncher(&fakeLauncher{handle: handle}), WithGrace(20*time.Millisecond))
	proc, err := sup.Start(ctx, Command{Path: "ffmpeg"})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	cancel()

	select {
	case <-proc.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("process not terminated after context cancel")
	}
	if handle.interrupts.Load() != 1 {
		t.Fatalf("expected graceful interrupt, got %d", handle.interrupts.Load())
	}
}

func TestStartPropagatesLaunchFailure(t *testing.T) {
	sup := New(WithLauncher(&fakeLauncher{err: fmt.Errorf("%w: ffmpeg", ErrLaunchFailed)}))
	if _, err := sup.Start(context.Background(), Command{Path: "ffmpeg"}); !errors.Is(err, ErrLaunchFailed) {
		t.Fatalf("expected ErrLaunchFailed, got %v", err)
	}
	if _, err := sup.Start(context.Background(), Command{}); !errors.Is(err, ErrLaunchFailed) {
		t.Fatalf("expected ErrLaunchFailed for empty path, got %v", err)
	}
}

func TestExecLauncherMissingBinary(t *testing.T) {
	sup := New()
	for _, path := range []string{"reel-definitely-not-installed", "/nonexistent/reel/ffmpeg"} {
		if _, err := sup.Start(context.Background(), Command{Path: path}); !errors.Is(err, ErrLaunchFailed) {
			t.Fatalf("%s: expected ErrLaunchFailed, got %v", path, err)
		}
	}
}

func TestExecLauncherRealProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	sup := New(WithGrace(50 * time.Millisecond))

	proc, err := sup.Start(context.Background(), Command{Path: "sh", Args: []string{"-c", "echo first >&2; echo oops >&2; exit 3"}})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	_, err = proc.Wait(5 * time.Second)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 3 {
		t.Fatalf("expected exit 3, got %v", err)
	}
	if !slices.Equal(exitErr.Tail, []string{"first", "oops"}) {
		t.Fatalf("unexpected tail %v", exitErr.Tail)
	}

	stubborn, err := sup.Start(context.Background(), Command{Path: "sh", Args: []string{"-c", "trap '' TERM; exec sleep 30"}})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if state := stubborn.Terminate(); state != TerminationKilled {
		t.Fatalf("expected SIGTERM-ignoring process to be killed, got %s", state)
	}
}

func TestExecLauncherChildHoldsStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	sup := New(WithGrace(100 * time.Millisecond))
	proc, err := sup.Start(context.Background(), Command{Path: "sh", Args: []string{"-c", "sleep 5 & exit 0"}})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	start := time.Now()
	code, err := proc.Wait(3 * time.Second)
	if err != nil || code != 0 {
		t.Fatalf("expected clean exit, got %d %v", code, err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Wait waited for the background child: %s", elapsed)
	}
	if proc.TerminationState() != TerminationNone {
		t.Fatalf("expected no termination, got %s", proc.TerminationState())
	}
}
