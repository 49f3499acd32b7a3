package merge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"reel/internal/config"
	"reel/internal/failure"
	"reel/internal/fileutil"
	"reel/internal/job"
	"reel/internal/logging"
	"reel/internal/preflight"
	"reel/internal/procsup"
)

const (
	placeholderStep = 0.1
	placeholderCap  = 10.0
	sizeProgressCap = 99.0
)

// Job concatenates inputs into one output with ffmpeg stream copy.
type Job struct {
	manifest          Manifest
	allowIncompatible bool

	ffmpeg       string
	tempDir      string
	lockDir      string
	pollInterval time.Duration
	waitTimeout  time.Duration
	ratio        float64
	windowsPaths bool

	prober     Prober
	supervisor *procsup.Supervisor
	logger     *slog.Logger
}

// Option configures a Job.
type Option func(*Job)

// WithProber replaces the ffprobe-backed prober.
func WithProber(p Prober) Option {
	return func(j *Job) {
		if p != nil {
			j.prober = p
		}
	}
}

// WithSupervisor replaces the process supervisor used to run ffmpeg.
func WithSupervisor(s *procsup.Supervisor) Option {
	return func(j *Job) {
		if s != nil {
			j.supervisor = s
		}
	}
}

// WithLogger sets the job's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// Prepare validates req and returns a job ready to start. Every failure here
// happens before anything is written: fewer than two inputs, a missing
// output path, unreadable or non-regular inputs, an output that is one of
// the inputs, an unwritable output directory, or missing tools.
func Prepare(ctx context.Context, cfg *config.Config, req Request, opts ...Option) (*Job, error) {
	const op = "prepare merge"
	if cfg == nil {
		return nil, failure.Wrap(failure.ErrInvalidInput, op, "configuration required", nil)
	}
	if len(req.Inputs) < 2 {
		return nil, failure.Wrap(failure.ErrInvalidInput, op, fmt.Sprintf("at least two inputs required, got %d", len(req.Inputs)), nil)
	}
	if strings.TrimSpace(req.Output) == "" {
		return nil, failure.Wrap(failure.ErrInvalidInput, op, "output path required", nil)
	}

	inputs := make([]string, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		abs, err := filepath.Abs(strings.TrimSpace(in))
		if err != nil {
			return nil, failure.Wrap(failure.ErrInvalidInput, op, in, err)
		}
		inputs = append(inputs, abs)
	}
	if req.Sort {
		SortNatural(inputs)
	}

	manifest := Manifest{Files: make([]MediaFile, 0, len(inputs))}
	for _, path := range inputs {
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrPermission):
			return nil, failure.Wrap(failure.ErrAccessDenied, op, path, err)
		case err != nil:
			return nil, failure.Wrap(failure.ErrInvalidInput, op, path, err)
		case !info.Mode().IsRegular():
			return nil, failure.Wrap(failure.ErrInvalidInput, op, path+" is not a regular file", nil)
		}
		manifest.Files = append(manifest.Files, MediaFile{Path: path, Size: info.Size()})
		manifest.TotalSize += info.Size()
	}

	output, err := filepath.Abs(strings.TrimSpace(req.Output))
	if err != nil {
		return nil, failure.Wrap(failure.ErrInvalidInput, op, req.Output, err)
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return nil, failure.Wrap(failure.ErrInvalidInput, op, output+" is a directory", nil)
	}
	for _, f := range manifest.Files {
		if fileutil.SameFile(f.Path, output) {
			return nil, failure.Wrap(failure.ErrInvalidInput, op, "output would overwrite input "+f.Path, nil)
		}
	}
	manifest.Output = output

	if err := preflight.CheckOutputParent(output); err != nil {
		return nil, err
	}
	if err := preflight.RequireTools(cfg); err != nil {
		return nil, err
	}

	j := &Job{
		manifest:          manifest,
		allowIncompatible: req.AllowIncompatible,
		ffmpeg:            cfg.FFmpegBinary(),
		tempDir:           cfg.Paths.TempDir,
		lockDir:           cfg.Paths.LockDir,
		pollInterval:      cfg.MergePollInterval(),
		waitTimeout:       cfg.WaitTimeout(),
		ratio:             cfg.Merge.SizeAnomalyRatio,
		windowsPaths:      runtime.GOOS == "windows",
		logger:            logging.NewNop(),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.logger = logging.NewComponentLogger(logging.WithContext(ctx, j.logger), "merge")
	if j.prober == nil {
		j.prober = NewFFprobeProber(cfg.FFprobeBinary(), cfg.ProbeTimeout())
	}
	if j.supervisor == nil {
		j.supervisor = procsup.New(
			procsup.WithGrace(cfg.KillGrace()),
			procsup.WithTailLines(cfg.Merge.DiagnosticTailLines),
			procsup.WithLogger(j.logger),
		)
	}
	return j, nil
}

// Kind implements job.Body.
func (j *Job) Kind() job.Kind { return job.KindMerge }

// Manifest returns a copy of the validated inputs and output.
func (j *Job) Manifest() Manifest {
	m := j.manifest
	m.Files = append([]MediaFile(nil), j.manifest.Files...)
	return m
}

// Run checks compatibility, writes the concat list, and supervises ffmpeg
// until the output is complete. It returns a *Report. On cancellation or
// failure no output file is left behind.
func (j *Job) Run(ctx context.Context, progress job.Reporter) (any, error) {
	logger := logging.WithContext(ctx, j.logger).With(logging.String("output", j.manifest.Output))
	files := append([]MediaFile(nil), j.manifest.Files...)

	lock, err := fileutil.LockOutput(j.lockDir, j.manifest.Output)
	if err != nil {
		if errors.Is(err, fileutil.ErrLocked) {
			return nil, failure.Wrap(failure.ErrAlreadyRunning, "merge", "another merge is writing "+j.manifest.Output, err)
		}
		return nil, failure.Wrap(nil, "merge", "lock output", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Debug("release output lock failed", logging.Error(err))
		}
	}()

	for i := range files {
		progress.Report(0, PhaseProbing, fmt.Sprintf("probing %d of %d", i+1, len(files)))
		files[i].Duration = j.prober.Duration(ctx, files[i].Path)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("merge cancelled while probing: %w", context.Canceled)
		}
	}

	progress.Report(0, PhaseChecking, "comparing stream attributes")
	verdict, err := NewChecker(j.prober).Check(ctx, files)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("merge cancelled while checking: %w", context.Canceled)
	}
	if err != nil {
		return nil, err
	}
	switch verdict.Status {
	case VerdictNoBaseline:
		return nil, failure.Wrap(failure.ErrInvalidInput, "check compatibility",
			fmt.Sprintf("first input %s is unreadable", files[0].Name()), nil)
	case VerdictMismatch:
		if !j.allowIncompatible {
			return nil, &IncompatibleError{Verdict: verdict}
		}
		logging.WarnWithContext(logger, "merging incompatible inputs", "merge_incompatible_override",
			logging.Int("mismatches", len(verdict.Mismatches)),
			logging.String(logging.FieldErrorHint, verdict.Describe()),
			logging.String(logging.FieldImpact, "output may fail to play past the first mismatch"),
		)
	}

	progress.Report(0, PhasePreparing, "writing concat list")
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	descriptor, err := WriteDescriptor(j.tempDir, paths, j.windowsPaths)
	if err != nil {
		return nil, failure.Wrap(nil, "merge", "write concat list", err)
	}
	defer func() {
		if err := fileutil.RemoveIfExists(descriptor); err != nil {
			logger.Warn("remove concat list failed", logging.Error(err))
		}
	}()
	if err := fileutil.EnsureParentDir(j.manifest.Output); err != nil {
		return nil, failure.Wrap(failure.ErrAccessDenied, "merge", "create output directory", err)
	}

	outputSize, err := j.runFFmpeg(ctx, progress, logger, descriptor)
	if err != nil {
		if rmErr := fileutil.RemoveIfExists(j.manifest.Output); rmErr != nil {
			logger.Warn("remove partial output failed", logging.Error(rmErr))
		}
		return nil, err
	}

	progress.Report(100, PhaseFinalizing, "merge complete")
	report := &Report{
		Output:         j.manifest.Output,
		OutputSize:     outputSize,
		TotalInputSize: j.manifest.TotalSize,
		SizeAnomaly:    SizeAnomaly(outputSize, j.manifest.TotalSize, j.ratio),
		Verdict:        verdict,
		Inputs:         files,
		TotalDuration:  TotalDuration(files),
	}
	if j.manifest.TotalSize > 0 {
		report.Ratio = float64(outputSize) / float64(j.manifest.TotalSize)
	}
	if report.SizeAnomaly {
		logging.WarnWithContext(logger, "merged output smaller than expected", "merge_size_anomaly",
			logging.Bytes("output_size", outputSize),
			logging.Bytes("input_size", j.manifest.TotalSize),
			logging.Float64("ratio", report.Ratio),
			logging.String(logging.FieldErrorHint, "inspect the output; stream copy may have dropped data"),
		)
	}
	logger.Info("merge complete",
		logging.Int("inputs", len(files)),
		logging.Bytes("output_size", outputSize),
		logging.String("duration", report.TotalDuration.String()),
	)
	return report, nil
}

func (j *Job) ffmpegArgs(descriptor string) []string {
	return []string{
		"-hide_banner", "-nostdin",
		"-f", "concat", "-safe", "0",
		"-i", descriptor,
		"-c", "copy",
		"-y", j.manifest.Output,
	}
}

// runFFmpeg supervises the concat process and returns the final output size.
func (j *Job) runFFmpeg(ctx context.Context, progress job.Reporter, logger *slog.Logger, descriptor string) (int64, error) {
	proc, err := j.supervisor.Start(ctx, procsup.Command{
		Path: j.ffmpeg,
		Args: j.ffmpegArgs(descriptor),
		OnLine: func(line string) {
			logger.Debug("ffmpeg", logging.String("line", line))
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("merge cancelled before ffmpeg started: %w", context.Canceled)
		}
		if errors.Is(err, procsup.ErrLaunchFailed) {
			return 0, failure.Wrap(failure.ErrToolUnavailable, "merge", "start ffmpeg", err)
		}
		return 0, failure.Wrap(failure.ErrProcessFailure, "merge", "start ffmpeg", err)
	}

	total := j.manifest.TotalSize
	placeholder := 0.0
	progress.Report(0, PhaseMerging, "starting ffmpeg")

	ticker := time.NewTicker(j.pollInterval)
	defer ticker.Stop()
poll:
	for {
		select {
		case <-ctx.Done():
			state := proc.Terminate()
			logger.Info("merge cancelled", logging.String("termination", state.String()))
			return 0, fmt.Errorf("merge cancelled: %w", context.Canceled)
		case <-proc.Drained():
			break poll
		case <-proc.Done():
			break poll
		case <-ticker.C:
			size, exists := fileutil.SizeIfExists(j.manifest.Output)
			if !exists {
				placeholder = min(placeholder+placeholderStep, placeholderCap)
				progress.Report(placeholder, PhaseMerging, "waiting for output")
				continue
			}
			pct := sizeProgressCap
			if total > 0 {
				pct = min(float64(size)/float64(total)*100, sizeProgressCap)
			}
			progress.Report(max(pct, placeholder), PhaseMerging,
				fmt.Sprintf("%s of %s", humanize.Bytes(uint64(size)), humanize.Bytes(uint64(total))))
		}
	}

	// ffmpeg closing its diagnostic stream means it is finishing; it gets
	// waitTimeout to actually exit before it is stopped.
	code, err := proc.Wait(j.waitTimeout)
	if ctx.Err() != nil {
		return 0, fmt.Errorf("merge cancelled: %w", context.Canceled)
	}
	if errors.Is(err, procsup.ErrTerminated) {
		wrapped := failure.Wrap(failure.ErrProcessFailure, "merge",
			fmt.Sprintf("ffmpeg did not exit within %s of closing its output", j.waitTimeout), err)
		return 0, failure.WithDiagnostic(wrapped, proc.Tail())
	}
	if err != nil {
		var exitErr *procsup.ExitError
		if errors.As(err, &exitErr) {
			wrapped := failure.Wrap(failure.ErrProcessFailure, "merge", fmt.Sprintf("ffmpeg exited with status %d", code), err)
			return 0, failure.WithDiagnostic(wrapped, exitErr.Tail)
		}
		return 0, failure.WithDiagnostic(failure.Wrap(failure.ErrProcessFailure, "merge", "ffmpeg", err), proc.Tail())
	}

	size, exists := fileutil.SizeIfExists(j.manifest.Output)
	if !exists || size == 0 {
		wrapped := failure.Wrap(failure.ErrProcessFailure, "merge", "ffmpeg exited 0 but output is missing or empty", nil)
		return 0, failure.WithDiagnostic(wrapped, proc.Tail())
	}
	return size, nil
}
