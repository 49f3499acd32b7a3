package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reel/internal/merge"
	"reel/internal/workflow"
)

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var (
		output     string
		assumeYes  bool
		sortInputs bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "merge <inputs...> -o <output>",
		Short: "Concatenate video files without re-encoding",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := ctx.newManager()
			if err != nil {
				return err
			}
			req := merge.Request{Inputs: args, Output: output, Sort: sortInputs}

			report, err := runMerge(cmd, ctx, mgr, req, jsonOutput)
			var incompatible *merge.IncompatibleError
			if errors.As(err, &incompatible) {
				fmt.Fprint(cmd.ErrOrStderr(), renderMismatches(incompatible.Verdict))
				proceed := assumeYes
				if !proceed {
					proceed, err = confirmContinue(cmd)
					if err != nil {
						return err
					}
				}
				if !proceed {
					return incompatible
				}
				req.AllowIncompatible = true
				report, err = runMerge(cmd, ctx, mgr, req, jsonOutput)
			}
			if err != nil {
				if errors.Is(err, context.Canceled) {
					fmt.Fprintln(cmd.ErrOrStderr(), "Merge cancelled; partial output removed")
				}
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, report)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderMergeReport(report))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Merged output file")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Merge even when stream attributes differ")
	cmd.Flags().BoolVar(&sortInputs, "sort", false, "Order inputs by natural file name order")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the merge report as JSON")
	return cmd
}

func runMerge(cmd *cobra.Command, ctx *commandContext, mgr *workflow.Manager, req merge.Request, quiet bool) (*merge.Report, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	id, err := mgr.Merge(cmd.Context(), req)
	if err != nil {
		return nil, err
	}
	snap, err := runForeground(cmd, mgr, id, cfg.MergePollInterval(), quiet)
	if err != nil {
		return nil, err
	}
	report, ok := snap.Result.(*merge.Report)
	if !ok {
		return nil, fmt.Errorf("merge returned unexpected result %T", snap.Result)
	}
	return report, nil
}

// confirmContinue asks whether to merge incompatible inputs. Without a
// terminal on stdin there is nobody to ask, so the answer is no.
func confirmContinue(cmd *cobra.Command) (bool, error) {
	in := cmd.InOrStdin()
	if !isTerminal(in) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Rerun with --yes to merge anyway")
		return false, nil
	}
	return promptYesNo(in, cmd.ErrOrStderr(), "Merge anyway? The output may not play correctly past the first mismatch [y/N]: ")
}

func promptYesNo(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func renderMismatches(verdict merge.Verdict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Inputs are not stream-compatible with the first file (%s):\n", verdict.Baseline)
	rows := make([][]string, 0, len(verdict.Mismatches))
	for _, m := range verdict.Mismatches {
		rows = append(rows, []string{
			strconv.Itoa(m.Index),
			m.Name,
			strings.Join(m.Fields, ", "),
			m.Attributes.String(),
		})
	}
	b.WriteString(renderTable([]string{"#", "File", "Differs in", "Attributes"}, rows, []columnAlignment{alignRight}))
	b.WriteString("\n")
	return b.String()
}

func renderMergeReport(report *merge.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Merged %d files into %s\n", len(report.Inputs), report.Output)

	rows := make([][]string, 0, len(report.Inputs))
	for i, f := range report.Inputs {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			f.Name(),
			humanize.Bytes(uint64(f.Size)),
			f.Duration.String(),
		})
	}
	b.WriteString(renderTable([]string{"#", "Input", "Size", "Duration"}, rows, []columnAlignment{alignRight, alignLeft, alignRight, alignRight}))
	b.WriteString("\n")

	fmt.Fprintf(&b, "Output size:    %s (%.0f%% of %s input)\n",
		humanize.Bytes(uint64(report.OutputSize)), report.Ratio*100, humanize.Bytes(uint64(report.TotalInputSize)))
	fmt.Fprintf(&b, "Total duration: %s\n", report.TotalDuration)
	if !report.Verdict.Compatible() {
		fmt.Fprintf(&b, "Warning: merged despite %d incompatible input(s)\n", len(report.Verdict.Mismatches))
	}
	if report.SizeAnomaly {
		b.WriteString("Warning: output is much smaller than the inputs combined; stream copy may have dropped data\n")
	}
	return b.String()
}
