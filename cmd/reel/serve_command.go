package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reel/internal/api"
	"reel/internal/failure"
	"reel/internal/fileutil"
	"reel/internal/logging"
	"reel/internal/metrics"
	"reel/internal/preflight"
	"reel/internal/workflow"
)

const serveLockName = "reel.lock"

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the job API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(bind) != "" {
				cfg.API.Bind = strings.TrimSpace(bind)
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			lock, err := fileutil.TryLock(filepath.Join(cfg.Paths.LogDir, serveLockName))
			if err != nil {
				if errors.Is(err, fileutil.ErrLocked) {
					return failure.Wrap(failure.ErrAlreadyRunning, "serve", "another reel server is running", err)
				}
				return err
			}
			defer func() {
				if err := lock.Unlock(); err != nil {
					logger.Debug("release server lock failed", logging.Error(err))
				}
			}()

			for _, result := range preflight.Failed(preflight.RunAll(cfg)) {
				logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
					logging.String("check", result.Name),
					logging.String("detail", result.Detail),
					logging.String(logging.FieldImpact, "jobs depending on this check will be rejected"),
				)
			}

			sigCtx, stop := signalContext(cmd.Context())
			defer stop()

			recorder := metrics.NewRecorder()
			manager := workflow.NewManager(cfg, logger, workflow.WithObserver(recorder))
			server := api.NewServer(cfg, manager, recorder, logger)
			if err := server.Start(sigCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", server.Addr())

			<-sigCtx.Done()
			logger.Info("shutting down")
			server.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.KillGrace()+cfg.WaitTimeout()+5*time.Second)
			defer cancel()
			if err := manager.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown jobs: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides api.bind)")
	return cmd
}
