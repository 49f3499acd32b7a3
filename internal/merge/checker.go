package merge

import (
	"context"
	"fmt"
	"time"

	"reel/internal/failure"
	"reel/internal/media/ffprobe"
)

// Prober inspects media files.
type Prober interface {
	VideoAttributes(ctx context.Context, path string) (ffprobe.Attributes, error)
	Duration(ctx context.Context, path string) ffprobe.Duration
}

type ffprobeProber struct {
	binary  string
	timeout time.Duration
}

// NewFFprobeProber probes with the given ffprobe binary, bounding each call
// by timeout when positive.
func NewFFprobeProber(binary string, timeout time.Duration) Prober {
	return ffprobeProber{binary: binary, timeout: timeout}
}

func (p ffprobeProber) VideoAttributes(ctx context.Context, path string) (ffprobe.Attributes, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()
	return ffprobe.VideoAttributes(ctx, p.binary, path)
}

func (p ffprobeProber) Duration(ctx context.Context, path string) ffprobe.Duration {
	ctx, cancel := p.bound(ctx)
	defer cancel()
	return ffprobe.ProbeDuration(ctx, p.binary, path)
}

func (p ffprobeProber) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

// Checker decides whether inputs can be stream-copied together.
type Checker struct {
	prober Prober
}

// NewChecker returns a Checker using prober.
func NewChecker(prober Prober) *Checker {
	return &Checker{prober: prober}
}

// Check compares every file against the first. An unreadable first file
// yields VerdictNoBaseline; an unreadable later file is an error. Probed
// attributes are recorded on files.
func (c *Checker) Check(ctx context.Context, files []MediaFile) (Verdict, error) {
	if len(files) == 0 {
		return Verdict{}, failure.Wrap(failure.ErrInvalidInput, "check compatibility", "no inputs", nil)
	}

	baseline, err := c.prober.VideoAttributes(ctx, files[0].Path)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Verdict{}, ctxErr
	}
	if err != nil {
		return Verdict{Status: VerdictNoBaseline}, nil
	}
	files[0].Attributes = &baseline

	verdict := Verdict{Status: VerdictPass, Baseline: baseline}
	for i := 1; i < len(files); i++ {
		attrs, err := c.prober.VideoAttributes(ctx, files[i].Path)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Verdict{}, ctxErr
		}
		if err != nil {
			return Verdict{}, failure.Wrap(failure.ErrInvalidInput, "check compatibility",
				fmt.Sprintf("file %d (%s) is unreadable", i+1, files[i].Name()), err)
		}
		files[i].Attributes = &attrs
		if fields := baseline.Diff(attrs); len(fields) > 0 {
			verdict.Status = VerdictMismatch
			verdict.Mismatches = append(verdict.Mismatches, Mismatch{
				Index:      i + 1,
				Name:       files[i].Name(),
				Fields:     fields,
				Attributes: attrs,
			})
		}
	}
	return verdict, nil
}
