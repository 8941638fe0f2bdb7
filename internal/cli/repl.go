package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var replUser string

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive slash-command session",
	Long: `Start an interactive session that sends slash commands such as
/tasks, /add and /process to the server. Type /help for the list.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		c := client()

		fmt.Fprintln(out, headerStyle.Render("Honeycomb REPL"))
		fmt.Fprintf(out, "Server: %s | User: %s\n", serverURL, replUser)
		fmt.Fprintln(out, "Type 'exit' or 'quit' to leave, /help for commands.")

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "\n> ")
			if !scanner.Scan() {
				break
			}
			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}
			if input == "exit" || input == "quit" {
				fmt.Fprintln(out, "Bye!")
				return nil
			}
			if !strings.HasPrefix(input, "/") {
				fmt.Fprintln(out, "Commands start with '/'. Try /help.")
				continue
			}

			res, err := c.Command(cmd.Context(), input, replUser)
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render(err.Error()))
				continue
			}
			fmt.Fprintln(out, strings.TrimRight(res.Content, "\n"))
		}
		return scanner.Err()
	},
}

func init() {
	def := os.Getenv("USER")
	if def == "" {
		def = "cli-user"
	}
	replCmd.Flags().StringVar(&replUser, "user", def, "user name sent with each command")
	rootCmd.AddCommand(replCmd)
}
