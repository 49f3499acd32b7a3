package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reel/internal/logging"
	"reel/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		jobID  string
		level  string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the reel log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.FileName)
			filter := logs.Filter{JobID: strings.TrimSpace(jobID)}
			if strings.TrimSpace(level) != "" {
				filter.MinLevel = logs.ParseLevel(level)
				filter.LevelSet = true
			}

			// Filtering happens after the tail, so read extra lines when a
			// filter is set to still show roughly the requested amount.
			limit := lines
			if filter.Active() && limit > 0 {
				limit *= 20
			}
			tail, offset, err := logs.Last(path, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			shown := matching(tail, filter)
			if lines > 0 && len(shown) > lines {
				shown = shown[len(shown)-lines:]
			}
			for _, line := range shown {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}

			sigCtx, stop := signalContext(cmd.Context())
			defer stop()
			return logs.Follow(sigCtx, path, offset, 250*time.Millisecond, func(line string) {
				if filter.Match(line) {
					fmt.Fprintln(out, line)
				}
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&jobID, "job", "", "Only show records for this job ID")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level to show (debug, info, warn, error)")
	return cmd
}

func matching(lines []string, filter logs.Filter) []string {
	if !filter.Active() {
		return lines
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if filter.Match(line) {
			out = append(out, line)
		}
	}
	return out
}
