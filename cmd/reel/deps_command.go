package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reel/internal/deps"
	"reel/internal/failure"
	"reel/internal/preflight"
)

type depsReport struct {
	Tools  []toolStatus  `json:"tools"`
	Checks []checkStatus `json:"checks"`
}

type toolStatus struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

type checkStatus struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check ffmpeg/ffprobe availability and working directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.DetectVersions(cmd.Context(), preflight.CheckSystemDeps(cfg))
			report := depsReport{}
			toolNames := make(map[string]struct{}, len(statuses))
			for _, s := range statuses {
				toolNames[s.Name] = struct{}{}
				report.Tools = append(report.Tools, toolStatus{
					Name:      s.Name,
					Command:   s.Command,
					Path:      s.Path,
					Version:   s.Version,
					Available: s.Available,
					Detail:    s.Detail,
				})
			}
			for _, r := range preflight.RunAll(cfg) {
				if _, tool := toolNames[r.Name]; tool {
					continue
				}
				report.Checks = append(report.Checks, checkStatus{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
			}

			if jsonOutput {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				for _, line := range dependencyLines(report, shouldColorize(out)) {
					fmt.Fprintln(out, line)
				}
			}

			if missing := deps.Missing(statuses); len(missing) > 0 {
				names := make([]string, 0, len(missing))
				for _, m := range missing {
					names = append(names, m.Name)
				}
				return failure.Wrap(failure.ErrToolUnavailable, "deps", "missing "+strings.Join(names, ", "), nil)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output dependency status as JSON")
	return cmd
}

func dependencyLines(report depsReport, colorize bool) []string {
	lines := renderSectionHeader("Tools", colorize)
	for _, tool := range report.Tools {
		if !tool.Available {
			lines = append(lines, renderStatusLine(tool.Name, statusError, tool.Detail, colorize))
			continue
		}
		kind := statusOK
		version := tool.Version
		if version == "" {
			kind = statusWarn
			version = "version unknown"
			if tool.Detail != "" {
				version = tool.Detail
			}
		}
		lines = append(lines, renderStatusLine(tool.Name, kind, fmt.Sprintf("%s (%s)", version, tool.Path), colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Directories", colorize)...)
	for _, check := range report.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	return lines
}
