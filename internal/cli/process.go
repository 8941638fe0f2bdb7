package cli

import (
	"fmt"

	"github.com/nidhogg/honeycomb/internal/coordinator"
	"github.com/spf13/cobra"
)

var (
	contextLimit int
	summaryLimit int
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run every pending task once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := client().Process(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(report.Outcomes) == 0 {
			fmt.Fprintln(out, report.String())
			return nil
		}
		for _, o := range report.Outcomes {
			line := o.String()
			switch o.Kind {
			case coordinator.OutcomeCompleted:
				line = statusCompleted.Render(line)
			case coordinator.OutcomeFailed:
				line = statusFailed.Render(line)
			default:
				line = statusPending.Render(line)
			}
			fmt.Fprintf(out, "Task %s: %s\n", idStyle.Render(o.TaskID), line)
		}
		fmt.Fprintln(out, report.Summary())
		return nil
	},
}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Show the latest context entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := client().Context(cmd.Context(), contextLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No context entries.")
			return nil
		}
		fmt.Fprintln(out, headerStyle.Render("Recent context"))
		for _, e := range entries {
			fmt.Fprintf(out, "  %s %s %s\n",
				idStyle.Render(e.CreatedAt.Local().Format("2006-01-02 15:04:05")),
				agentStyle.Render(e.Type), e.Content)
		}
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize recent context entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := client().Summary(cmd.Context(), summaryLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if res.Outcome.Kind != coordinator.OutcomeCompleted || res.Task == nil {
			fmt.Fprintln(out, errorStyle.Render("Summary "+res.Outcome.String()))
			return nil
		}
		fmt.Fprintln(out, headerStyle.Render("Summary"))
		fmt.Fprintln(out, renderValue(res.Task.Result))
		return nil
	},
}

func init() {
	contextCmd.Flags().IntVarP(&contextLimit, "limit", "n", 10, "number of entries to show")
	summaryCmd.Flags().IntVarP(&summaryLimit, "limit", "n", 0, "number of entries to summarize (server default when 0)")
	rootCmd.AddCommand(processCmd, contextCmd, summaryCmd)
}
