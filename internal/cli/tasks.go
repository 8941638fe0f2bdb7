package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nidhogg/honeycomb/internal/task"
	"github.com/spf13/cobra"
)

var (
	tasksStatus string
	addParams   []string
	addJSON     string
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks in creation order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := client().ListTasks(cmd.Context(), tasksStatus)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(tasks) == 0 {
			fmt.Fprintln(out, "No tasks found.")
			return nil
		}
		fmt.Fprintln(out, headerStyle.Render("Tasks"))
		for _, t := range tasks {
			fmt.Fprintf(out, "  %s %-10s %-16s %s\n",
				idStyle.Render(t.ID), renderTaskStatus(t.Status), t.Type, t.Description)
		}
		return nil
	},
}

var taskCmd = &cobra.Command{
	Use:   "task <id>",
	Short: "Show one task with its result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := client().GetTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printTask(cmd.OutOrStdout(), t)
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <type> <description...>",
	Short: "Submit a new task",
	Long: `Submit a new pending task of the given type.

Parameters can be given as repeated --param key=value flags or as a
JSON object with --params. Values given with --param are parsed as JSON
when possible, so --param limit=5 sends a number.`,
	Example: `  honeyctl add writing "Blog post about bees" --param tone=casual
  honeyctl add coding "Fibonacci in Go" --param language=go --param file_path=fib.go
  honeyctl add command "ls -la"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(addJSON, addParams)
		if err != nil {
			return err
		}
		t, err := client().CreateTask(cmd.Context(), args[0], strings.Join(args[1:], " "), params)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Task created with ID: %s\n", t.ID)
		return nil
	},
}

// parseParams merges a JSON object with key=value pairs; pairs win.
func parseParams(raw string, pairs []string) (map[string]any, error) {
	params := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return nil, fmt.Errorf("--params must be a JSON object: %w", err)
		}
	}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", p)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			params[k] = decoded
		} else {
			params[k] = v
		}
	}
	return params, nil
}

func printTask(out io.Writer, t *task.Task) {
	fmt.Fprintf(out, "%s %s\n", headerStyle.Render("Task"), idStyle.Render(t.ID))
	fmt.Fprintf(out, "  type:        %s\n", t.Type)
	fmt.Fprintf(out, "  status:      %s\n", renderTaskStatus(t.Status))
	fmt.Fprintf(out, "  description: %s\n", t.Description)
	if t.AgentID != "" {
		fmt.Fprintf(out, "  agent:       %s\n", t.AgentID)
	}
	if t.Result != nil {
		fmt.Fprintf(out, "  result:\n%s\n", indent(renderValue(t.Result)))
	}
	if t.Error != "" {
		fmt.Fprintf(out, "  error:       %s\n", errorStyle.Render(t.Error))
	}
}

func renderValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

func init() {
	tasksCmd.Flags().StringVar(&tasksStatus, "status", "", "filter by status (pending, assigned, completed, failed)")
	addCmd.Flags().StringArrayVarP(&addParams, "param", "p", nil, "task parameter as key=value (repeatable)")
	addCmd.Flags().StringVar(&addJSON, "params", "", "task parameters as a JSON object")
	rootCmd.AddCommand(tasksCmd, taskCmd, addCmd)
}
