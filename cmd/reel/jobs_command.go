package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reel/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var addr string

	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and control jobs on a running reel server",
	}
	jobsCmd.PersistentFlags().StringVar(&addr, "addr", "", "Server address (defaults to api.bind)")

	client := func() (*api.Client, error) {
		target := strings.TrimSpace(addr)
		if target == "" {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return nil, err
			}
			target = cfg.API.Bind
		}
		return api.NewClient(target, nil)
	}

	var listJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			jobs, err := c.ListJobs(cmd.Context())
			if err != nil {
				return err
			}
			if listJSON {
				return writeJSON(cmd, jobs)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderJobTable(jobs))
			return nil
		},
	}
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output jobs as JSON")

	var showJSON bool
	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			j, err := c.Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if showJSON {
				return writeJSON(cmd, j)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderJobDetail(j))
			return nil
		},
	}
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output the job as JSON")

	cancelCmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Request cancellation of a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			j, err := c.CancelJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s: %s\n", j.ID, j.State)
			return nil
		},
	}

	forgetCmd := &cobra.Command{
		Use:   "forget <id>",
		Short: "Remove a finished job from the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			if err := c.ForgetJob(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot job %s\n", args[0])
			return nil
		},
	}

	jobsCmd.AddCommand(listCmd, showCmd, cancelCmd, forgetCmd)
	return jobsCmd
}

func renderJobTable(jobs []api.Job) string {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			j.ID,
			j.Kind,
			j.State,
			fmt.Sprintf("%.1f%%", j.Percent),
			j.Phase,
			j.StartedAt,
		})
	}
	return renderTable(
		[]string{"ID", "Kind", "State", "Progress", "Phase", "Started"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	)
}

func renderJobDetail(j api.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID:        %s\n", j.ID)
	fmt.Fprintf(&b, "Kind:      %s\n", j.Kind)
	fmt.Fprintf(&b, "State:     %s\n", j.State)
	fmt.Fprintf(&b, "Progress:  %.1f%%", j.Percent)
	if j.Phase != "" {
		fmt.Fprintf(&b, " (%s)", j.Phase)
	}
	b.WriteString("\n")
	if j.Message != "" {
		fmt.Fprintf(&b, "Message:   %s\n", j.Message)
	}
	if j.StartedAt != "" {
		fmt.Fprintf(&b, "Started:   %s\n", j.StartedAt)
	}
	if j.FinishedAt != "" {
		fmt.Fprintf(&b, "Finished:  %s\n", j.FinishedAt)
	}
	if j.Error != "" {
		fmt.Fprintf(&b, "Error:     %s [%s]\n", j.Error, j.Classification)
	}
	if j.Verdict != nil && !j.Verdict.Compatible() {
		b.WriteString(renderMismatches(*j.Verdict))
	}
	if len(j.Diagnostic) > 0 {
		b.WriteString("Diagnostic:\n")
		for _, line := range j.Diagnostic {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	return b.String()
}
