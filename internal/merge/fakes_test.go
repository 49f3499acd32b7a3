package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"sync"
	"testing"

	"reel/internal/config"
	"reel/internal/media/ffprobe"
	"reel/internal/procsup"
	"reel/internal/testsupport"
)

var (
	h264          = ffprobe.Attributes{Codec: "h264", Width: 1920, Height: 1080, PixFmt: "yuv420p"}
	errUnreadable = errors.New("moov atom not found")
)

type fakeProber struct {
	attrs     map[string]ffprobe.Attributes
	errs      map[string]error
	durations map[string]ffprobe.Duration
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		attrs:     map[string]ffprobe.Attributes{},
		errs:      map[string]error{},
		durations: map[string]ffprobe.Duration{},
	}
}

func (p *fakeProber) VideoAttributes(_ context.Context, path string) (ffprobe.Attributes, error) {
	if err := p.errs[path]; err != nil {
		return ffprobe.Attributes{}, err
	}
	if attrs, ok := p.attrs[path]; ok {
		return attrs, nil
	}
	return h264, nil
}

func (p *fakeProber) Duration(_ context.Context, path string) ffprobe.Duration {
	return p.durations[path]
}

// fakeFFmpeg stands in for an ffmpeg process: it writes outputSize bytes to
// the last argument, prints stderr lines, and exits with exitCode. When
// block is set it writes output and then waits to be interrupted; with
// lingering it also closes stderr first.
type fakeFFmpeg struct {
	outputSize      int64
	exitCode        int
	stderr          []string
	block           bool
	lingering       bool
	ignoreInterrupt bool

	mu         sync.Mutex
	args       []string
	descriptor []byte
	started    chan struct{}
	handle     *fakeHandle
}

func newFakeFFmpeg(outputSize int64) *fakeFFmpeg {
	return &fakeFFmpeg{outputSize: outputSize, started: make(chan struct{})}
}

func (f *fakeFFmpeg) Launch(cmd procsup.Command) (procsup.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.args = slices.Clone(cmd.Args)
	if i := slices.Index(cmd.Args, "-i"); i >= 0 && i+1 < len(cmd.Args) {
		f.descriptor, _ = os.ReadFile(cmd.Args[i+1])
	}
	output := cmd.Args[len(cmd.Args)-1]

	r, w := io.Pipe()
	h := &fakeHandle{stderrR: r, stderrW: w, exited: make(chan struct{}), ignoreInterrupt: f.ignoreInterrupt}
	f.handle = h
	go func() {
		if f.outputSize > 0 {
			if out, err := os.Create(output); err == nil {
				_ = out.Truncate(f.outputSize)
				_ = out.Close()
			}
		}
		for _, line := range f.stderr {
			fmt.Fprintln(w, line)
		}
		close(f.started)
		if f.lingering {
			_ = w.Close()
			return
		}
		if f.block {
			return
		}
		h.exit(f.exitCode)
	}()
	return h, nil
}

func (f *fakeFFmpeg) launched() ([]string, []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.args, f.descriptor
}

type fakeHandle struct {
	stderrR *io.PipeReader
	stderrW *io.PipeWriter
	exited  chan struct{}
	once    sync.Once
	code    int

	ignoreInterrupt bool
}

func (h *fakeHandle) exit(code int) {
	h.once.Do(func() {
		h.code = code
		_ = h.stderrW.Close()
		close(h.exited)
	})
}

func (h *fakeHandle) Stderr() io.Reader { return h.stderrR }

func (h *fakeHandle) Interrupt() error {
	if !h.ignoreInterrupt {
		h.exit(255)
	}
	return nil
}

func (h *fakeHandle) Kill() error {
	h.exit(-1)
	return nil
}

func (h *fakeHandle) Wait() (int, error) {
	<-h.exited
	return h.code, nil
}

func (h *fakeHandle) Pid() int { return 7 }

type recordingReporter struct {
	mu      sync.Mutex
	percent []float64
	phases  []string
}

func (r *recordingReporter) Report(percent float64, phase, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.percent = append(r.percent, percent)
	if len(r.phases) == 0 || r.phases[len(r.phases)-1] != phase {
		r.phases = append(r.phases, phase)
	}
}

func (r *recordingReporter) seenPhases() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.phases)
}

// mergeFixture builds a config with stubbed tools and sparse inputs of the
// given sizes.
type mergeFixture struct {
	cfg    *config.Config
	inputs []string
	output string
}

func newMergeFixture(t *testing.T, sizes ...int64) mergeFixture {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	base := testsupport.BaseDir(cfg)
	fx := mergeFixture{cfg: cfg, output: base + "/out/merged.mp4"}
	for i, size := range sizes {
		path := fmt.Sprintf("%s/in/part%d.mp4", base, i+1)
		testsupport.WriteSparseFile(t, path, size)
		fx.inputs = append(fx.inputs, path)
	}
	return fx
}

func (fx mergeFixture) prepare(t *testing.T, req Request, prober Prober, ff *fakeFFmpeg) *Job {
	t.Helper()
	if req.Inputs == nil {
		req.Inputs = fx.inputs
	}
	if req.Output == "" {
		req.Output = fx.output
	}
	sup := procsup.New(procsup.WithLauncher(ff), procsup.WithGrace(fx.cfg.KillGrace()))
	j, err := Prepare(context.Background(), fx.cfg, req, WithProber(prober), WithSupervisor(sup))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return j
}
