package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"reel/internal/job"
	"reel/internal/workflow"
)

// runForeground follows job id on mgr until it is terminal, translating
// Cancelled and Failed snapshots into errors.
func runForeground(cmd *cobra.Command, mgr *workflow.Manager, id string, interval time.Duration, quiet bool) (job.Snapshot, error) {
	ctrl, err := mgr.Controller(id)
	if err != nil {
		return job.Snapshot{}, err
	}
	sigCtx, stop := signalContext(cmd.Context())
	defer stop()

	var bar io.Writer
	if !quiet && isTerminal(cmd.ErrOrStderr()) {
		bar = cmd.ErrOrStderr()
	}
	snap := followJob(sigCtx, ctrl, interval, bar)
	return snap, snapshotError(snap)
}

func snapshotError(snap job.Snapshot) error {
	switch snap.State {
	case job.StateCompleted:
		return nil
	case job.StateCancelled:
		return fmt.Errorf("%s cancelled: %w", snap.Kind, context.Canceled)
	case job.StateFailed:
		if snap.Err != nil {
			return snap.Err
		}
		return errors.New(snap.Error)
	default:
		return fmt.Errorf("%s ended in unexpected state %s", snap.Kind, snap.State)
	}
}
