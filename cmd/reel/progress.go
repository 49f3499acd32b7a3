package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reel/internal/job"
)

var phaseTitle = cases.Title(language.English)

// followJob polls ctrl every interval until the job is terminal. When ctx
// ends, cancellation is requested once and polling continues so the caller
// only sees the job after its cleanup. A bar is drawn to w when w is non-nil.
func followJob(ctx context.Context, ctrl *job.Controller, interval time.Duration, w io.Writer) job.Snapshot {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	var bar *progressbar.ProgressBar
	if w != nil {
		bar = newProgressBar(w)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	interrupt := ctx.Done()
	for {
		snap := ctrl.Poll()
		if bar != nil {
			drawProgress(bar, snap)
		}
		if snap.State.Terminal() {
			if bar != nil {
				if snap.State == job.StateCompleted {
					_ = bar.Finish()
				}
				_, _ = fmt.Fprintln(w)
			}
			return snap
		}
		select {
		case <-interrupt:
			ctrl.RequestCancel()
			interrupt = nil
		case <-ctrl.Done():
		case <-ticker.C:
		}
	}
}

func newProgressBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(1000,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionThrottle(50*time.Millisecond),
		progressbar.OptionSetDescription("Starting"),
	)
}

func drawProgress(bar *progressbar.ProgressBar, snap job.Snapshot) {
	bar.Describe(progressLabel(snap))
	_ = bar.Set(int(snap.Percent * 10))
}

func progressLabel(snap job.Snapshot) string {
	label := "Starting"
	if snap.Phase != "" {
		label = phaseTitle.String(snap.Phase)
	}
	if snap.State == job.StateCancelRequested {
		label = "Cancelling"
	}
	if snap.Message != "" {
		label += ": " + snap.Message
	}
	return fmt.Sprintf("%-40.40s", label)
}
