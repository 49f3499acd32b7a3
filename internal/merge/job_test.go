package merge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"reel/internal/failure"
	"reel/internal/fileutil"
	"reel/internal/job"
	"reel/internal/media/ffprobe"
	"reel/internal/procsup"
)

func TestPrepareValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(fx mergeFixture, req *Request)
		wantErr error
	}{
		{"single input", func(fx mergeFixture, r *Request) { r.Inputs = fx.inputs[:1] }, failure.ErrInvalidInput},
		{"blank output", func(_ mergeFixture, r *Request) { r.Output = "  " }, failure.ErrInvalidInput},
		{"missing input", func(fx mergeFixture, r *Request) {
			r.Inputs = []string{fx.inputs[0], filepath.Join(filepath.Dir(fx.inputs[0]), "gone.mp4")}
		}, failure.ErrInvalidInput},
		{"input is directory", func(fx mergeFixture, r *Request) {
			r.Inputs = []string{fx.inputs[0], filepath.Dir(fx.inputs[0])}
		}, failure.ErrInvalidInput},
		{"output overwrites input", func(fx mergeFixture, r *Request) { r.Output = fx.inputs[1] }, failure.ErrInvalidInput},
		{"output is directory", func(fx mergeFixture, r *Request) { r.Output = filepath.Dir(fx.inputs[0]) }, failure.ErrInvalidInput},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fx := newMergeFixture(t, 10, 10)
			req := Request{Inputs: fx.inputs, Output: fx.output}
			tc.mutate(fx, &req)
			_, err := Prepare(context.Background(), fx.cfg, req, WithProber(newFakeProber()))
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if _, statErr := os.Stat(fx.output); !os.IsNotExist(statErr) {
				t.Fatalf("precondition failure must not create output, stat err = %v", statErr)
			}
		})
	}
}

func TestPrepareRequiresTools(t *testing.T) {
	fx := newMergeFixture(t, 10, 10)
	fx.cfg.Tools.FFmpeg = "reel-no-such-ffmpeg"
	_, err := Prepare(context.Background(), fx.cfg, Request{Inputs: fx.inputs, Output: fx.output})
	if !errors.Is(err, failure.ErrToolUnavailable) {
		t.Fatalf("expected tool unavailable, got %v", err)
	}
}

func TestPrepareSortsInputsNaturally(t *testing.T) {
	fx := newMergeFixture(t, 10, 20)
	dir := filepath.Dir(fx.inputs[0])
	ten := filepath.Join(dir, "part10.mp4")
	if err := os.Rename(fx.inputs[0], ten); err != nil {
		t.Fatal(err)
	}
	j := fx.prepare(t, Request{Inputs: []string{ten, fx.inputs[1]}, Sort: true}, newFakeProber(), newFakeFFmpeg(1))

	m := j.Manifest()
	if m.Files[0].Path != fx.inputs[1] || m.Files[1].Path != ten {
		t.Fatalf("unexpected order %s, %s", m.Files[0].Path, m.Files[1].Path)
	}
	if m.TotalSize != 30 {
		t.Fatalf("total size = %d, want 30", m.TotalSize)
	}
}

func TestRunReportsSizeAnomaly(t *testing.T) {
	tests := []struct {
		name        string
		outputSize  int64
		wantAnomaly bool
	}{
		{"ninety percent is fine", 9_000_000, false},
		{"exactly threshold is fine", 8_000_000, false},
		{"thirty percent is anomalous", 3_000_000, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fx := newMergeFixture(t, 5_000_000, 5_000_000)
			prober := newFakeProber()
			prober.durations[fx.inputs[0]] = ffprobe.Known(60)
			prober.durations[fx.inputs[1]] = ffprobe.Known(90)
			ff := newFakeFFmpeg(tc.outputSize)
			j := fx.prepare(t, Request{}, prober, ff)

			rep := &recordingReporter{}
			result, err := j.Run(context.Background(), rep)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			report := result.(*Report)
			if report.SizeAnomaly != tc.wantAnomaly {
				t.Fatalf("anomaly = %v, want %v (ratio %.2f)", report.SizeAnomaly, tc.wantAnomaly, report.Ratio)
			}
			if report.OutputSize != tc.outputSize || report.TotalInputSize != 10_000_000 {
				t.Fatalf("unexpected sizes %d / %d", report.OutputSize, report.TotalInputSize)
			}
			if secs, ok := report.TotalDuration.Seconds(); !ok || secs != 150 {
				t.Fatalf("total duration = %v", report.TotalDuration)
			}
			if report.Verdict.Status != VerdictPass {
				t.Fatalf("verdict = %s", report.Verdict.Status)
			}
			wantPhases := []string{PhaseProbing, PhaseChecking, PhasePreparing, PhaseMerging, PhaseFinalizing}
			if got := rep.seenPhases(); !slices.Equal(got, wantPhases) {
				t.Fatalf("phases = %v, want %v", got, wantPhases)
			}
		})
	}
}

func TestRunInvokesStreamCopyConcat(t *testing.T) {
	fx := newMergeFixture(t, 100, 100)
	ff := newFakeFFmpeg(200)
	j := fx.prepare(t, Request{}, newFakeProber(), ff)

	if _, err := j.Run(context.Background(), &recordingReporter{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	args, descriptor := ff.launched()
	want := "file '" + fx.inputs[0] + "'\nfile '" + fx.inputs[1] + "'\n"
	if string(descriptor) != want {
		t.Fatalf("descriptor = %q, want %q", descriptor, want)
	}
	joined := strings.Join(args, " ")
	for _, frag := range []string{"-f concat", "-safe 0", "-c copy", "-y " + fx.output} {
		if !strings.Contains(joined, frag) {
			t.Fatalf("ffmpeg args %q missing %q", joined, frag)
		}
	}
	assertNoDescriptors(t, fx.cfg.Paths.TempDir)
}

func TestRunCancelledLeavesNoOutput(t *testing.T) {
	tests := []struct {
		name            string
		ignoreInterrupt bool
	}{
		{"graceful stop", false},
		{"unresponsive process is killed", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fx := newMergeFixture(t, 5_000_000, 5_000_000)
			ff := newFakeFFmpeg(2_000_000)
			ff.block = true
			ff.ignoreInterrupt = tc.ignoreInterrupt
			j := fx.prepare(t, Request{}, newFakeProber(), ff)

			ctrl := job.NewController()
			if _, err := ctrl.Start(j); err != nil {
				t.Fatalf("Start: %v", err)
			}
			select {
			case <-ff.started:
			case <-time.After(5 * time.Second):
				t.Fatal("ffmpeg never started")
			}
			if _, err := os.Stat(fx.output); err != nil {
				t.Fatalf("expected partial output before cancel: %v", err)
			}

			ctrl.RequestCancel()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			snap, err := ctrl.Wait(ctx)
			if err != nil {
				t.Fatalf("Wait: %v", err)
			}
			if snap.State != job.StateCancelled {
				t.Fatalf("state = %s, want cancelled (err %v)", snap.State, snap.Err)
			}
			if snap.Result != nil {
				t.Fatalf("cancelled merge delivered a result: %#v", snap.Result)
			}
			if _, err := os.Stat(fx.output); !os.IsNotExist(err) {
				t.Fatalf("output remains after cancel, stat err = %v", err)
			}
			assertNoDescriptors(t, fx.cfg.Paths.TempDir)
		})
	}
}

func TestRunNonZeroExitRemovesOutput(t *testing.T) {
	fx := newMergeFixture(t, 100, 100)
	ff := newFakeFFmpeg(50)
	ff.exitCode = 1
	ff.stderr = []string{"[concat @ 0x1] Impossible to open 'part2.mp4'", "Invalid data found when processing input"}
	j := fx.prepare(t, Request{}, newFakeProber(), ff)

	_, err := j.Run(context.Background(), &recordingReporter{})
	if !errors.Is(err, failure.ErrProcessFailure) {
		t.Fatalf("expected process failure, got %v", err)
	}
	tail := failure.DiagnosticTail(err)
	if len(tail) != 2 || tail[1] != "Invalid data found when processing input" {
		t.Fatalf("unexpected diagnostic tail %v", tail)
	}
	if _, statErr := os.Stat(fx.output); !os.IsNotExist(statErr) {
		t.Fatalf("partial output remains, stat err = %v", statErr)
	}
	assertNoDescriptors(t, fx.cfg.Paths.TempDir)
}

func TestRunBoundsWaitAfterStderrCloses(t *testing.T) {
	fx := newMergeFixture(t, 100, 100)
	fx.cfg.Merge.WaitTimeoutSeconds = 1
	fx.cfg.Merge.KillGraceSeconds = 1
	ff := newFakeFFmpeg(150)
	ff.lingering = true
	ff.stderr = []string{"video:0kB audio:0kB muxing overhead: unknown"}
	j := fx.prepare(t, Request{}, newFakeProber(), ff)

	start := time.Now()
	_, err := j.Run(context.Background(), &recordingReporter{})
	elapsed := time.Since(start)
	if !errors.Is(err, failure.ErrProcessFailure) {
		t.Fatalf("expected process failure, got %v", err)
	}
	if !errors.Is(err, procsup.ErrTerminated) {
		t.Fatalf("expected the lingering ffmpeg to be terminated, got %v", err)
	}
	limit := fx.cfg.WaitTimeout() + fx.cfg.KillGrace() + 2*time.Second
	if elapsed < fx.cfg.WaitTimeout() || elapsed > limit {
		t.Fatalf("run took %s, want between %s and %s", elapsed, fx.cfg.WaitTimeout(), limit)
	}
	if tail := failure.DiagnosticTail(err); len(tail) != 1 {
		t.Fatalf("unexpected diagnostic tail %v", tail)
	}
	if _, statErr := os.Stat(fx.output); !os.IsNotExist(statErr) {
		t.Fatalf("partial output remains, stat err = %v", statErr)
	}
	assertNoDescriptors(t, fx.cfg.Paths.TempDir)
}

func TestRunEmptyOutputFails(t *testing.T) {
	fx := newMergeFixture(t, 100, 100)
	j := fx.prepare(t, Request{}, newFakeProber(), newFakeFFmpeg(0))

	_, err := j.Run(context.Background(), &recordingReporter{})
	if !errors.Is(err, failure.ErrProcessFailure) {
		t.Fatalf("expected process failure, got %v", err)
	}
}

func TestRunIncompatibleInputs(t *testing.T) {
	fx := newMergeFixture(t, 100, 100, 100)
	prober := newFakeProber()
	narrow := h264
	narrow.Width = 1280
	prober.attrs[fx.inputs[1]] = narrow

	ff := newFakeFFmpeg(300)
	_, err := fx.prepare(t, Request{}, prober, ff).Run(context.Background(), &recordingReporter{})
	var incompatible *IncompatibleError
	if !errors.As(err, &incompatible) {
		t.Fatalf("expected IncompatibleError, got %v", err)
	}
	if failure.Classify(err) != failure.ClassIncompatibleInputs {
		t.Fatalf("classification = %s", failure.Classify(err))
	}
	if m := incompatible.Verdict.Mismatches; len(m) != 1 || m[0].Index != 2 {
		t.Fatalf("unexpected mismatches %#v", m)
	}
	if args, _ := ff.launched(); args != nil {
		t.Fatal("ffmpeg must not run for refused incompatible inputs")
	}

	result, err := fx.prepare(t, Request{AllowIncompatible: true}, prober, newFakeFFmpeg(300)).
		Run(context.Background(), &recordingReporter{})
	if err != nil {
		t.Fatalf("override run failed: %v", err)
	}
	if report := result.(*Report); report.Verdict.Status != VerdictMismatch {
		t.Fatalf("expected verdict carried on report, got %s", report.Verdict.Status)
	}
}

func TestRunNoBaselineFails(t *testing.T) {
	fx := newMergeFixture(t, 100, 100)
	prober := newFakeProber()
	prober.errs[fx.inputs[0]] = errUnreadable

	_, err := fx.prepare(t, Request{AllowIncompatible: true}, prober, newFakeFFmpeg(200)).
		Run(context.Background(), &recordingReporter{})
	if !errors.Is(err, failure.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestRunRefusesLockedOutput(t *testing.T) {
	fx := newMergeFixture(t, 100, 100)
	lock, err := fileutil.LockOutput(fx.cfg.Paths.LockDir, fx.output)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Unlock()

	_, err = fx.prepare(t, Request{}, newFakeProber(), newFakeFFmpeg(200)).Run(context.Background(), &recordingReporter{})
	if !errors.Is(err, failure.ErrAlreadyRunning) {
		t.Fatalf("expected already running, got %v", err)
	}
}

type launcherFunc func(procsup.Command) (procsup.Handle, error)

func (f launcherFunc) Launch(cmd procsup.Command) (procsup.Handle, error) { return f(cmd) }

func TestRunLaunchFailureIsToolUnavailable(t *testing.T) {
	fx := newMergeFixture(t, 100, 100)
	sup := procsup.New(procsup.WithLauncher(launcherFunc(func(procsup.Command) (procsup.Handle, error) {
		return nil, procsup.ErrLaunchFailed
	})))
	j, err := Prepare(context.Background(), fx.cfg, Request{Inputs: fx.inputs, Output: fx.output},
		WithProber(newFakeProber()), WithSupervisor(sup))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := j.Run(context.Background(), &recordingReporter{}); !errors.Is(err, failure.ErrToolUnavailable) {
		t.Fatalf("expected tool unavailable, got %v", err)
	}
	assertNoDescriptors(t, fx.cfg.Paths.TempDir)
}

func TestSizeAnomalyThreshold(t *testing.T) {
	if SizeAnomaly(9_000_000, 10_000_000, 0.8) {
		t.Fatal("90% must not be flagged")
	}
	if !SizeAnomaly(3_000_000, 10_000_000, 0.8) {
		t.Fatal("30% must be flagged")
	}
	if SizeAnomaly(0, 0, 0.8) {
		t.Fatal("empty input total cannot be anomalous")
	}
}

func TestTotalDuration(t *testing.T) {
	known := []MediaFile{{Duration: ffprobe.Known(1.5)}, {Duration: ffprobe.Known(2.5)}}
	if secs, ok := TotalDuration(known).Seconds(); !ok || secs != 4 {
		t.Fatalf("total = %v", TotalDuration(known))
	}
	mixed := []MediaFile{{Duration: ffprobe.Known(1)}, {Duration: ffprobe.Unknown}}
	if TotalDuration(mixed).IsKnown() {
		t.Fatal("any unknown duration makes the total unknown")
	}
}

func assertNoDescriptors(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "reel-concat-*.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Fatalf("concat list not removed: %v", matches)
	}
}
