package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reel/internal/dupscan"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "scan <root>",
		Short: "Report filenames that appear in more than one directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			mgr, err := ctx.newManager()
			if err != nil {
				return err
			}
			id, err := mgr.Scan(args[0])
			if err != nil {
				return err
			}

			snap, err := runForeground(cmd, mgr, id, cfg.ScanPollInterval(), jsonOutput)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					fmt.Fprintln(cmd.ErrOrStderr(), "Scan cancelled; no results")
				}
				return err
			}
			result, ok := snap.Result.(*dupscan.Result)
			if !ok {
				return fmt.Errorf("scan returned unexpected result %T", snap.Result)
			}
			if jsonOutput {
				return writeJSON(cmd, result)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderScanResult(result))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	return cmd
}

func renderScanResult(result *dupscan.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scanned %d files under %s\n", result.TotalFiles, result.Root)
	if len(result.Duplicates) == 0 {
		b.WriteString("No duplicate filenames found\n")
	} else {
		rows := make([][]string, 0, len(result.Duplicates))
		for _, dup := range result.Duplicates {
			rows = append(rows, []string{dup.Name, strconv.Itoa(len(dup.Dirs)), strings.Join(dup.Dirs, "\n")})
		}
		b.WriteString(renderTable([]string{"Name", "Count", "Directories"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
		b.WriteString("\n")
		fmt.Fprintf(&b, "%d duplicate filename(s)\n", len(result.Duplicates))
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintf(&b, "Skipped %d unreadable director%s:\n", len(result.Skipped), pluralY(len(result.Skipped)))
		for _, dir := range result.Skipped {
			fmt.Fprintf(&b, "  %s\n", dir)
		}
	}
	return b.String()
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
