package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "honeyctl",
	Short: "Honeycomb client - submit and inspect tasks on a honeycomb server",
	Long: `honeyctl talks to a running honeycomb server over its HTTP API.

It submits tasks, triggers processing sweeps, and shows agents, tasks
and the shared context log.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	def := os.Getenv("HONEYCOMB_SERVER")
	if def == "" {
		def = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", def, "honeycomb server URL")
}

func client() *Client {
	return NewClient(serverURL)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
