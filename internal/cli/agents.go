package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List registered agents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		agents, err := client().ListAgents(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(agents) == 0 {
			fmt.Fprintln(out, "No agents registered.")
			return nil
		}
		fmt.Fprintln(out, headerStyle.Render("Agents"))
		for _, a := range agents {
			fmt.Fprintf(out, "  %s %-14s %-16s %s\n",
				idStyle.Render(a.ID), agentStyle.Render(a.Name), a.Specialty, renderAgentStatus(a.Status))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}
