package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nidhogg/honeycomb/internal/agent"
	"github.com/nidhogg/honeycomb/internal/contextdb"
	"github.com/nidhogg/honeycomb/internal/coordinator"
	"github.com/nidhogg/honeycomb/internal/provider"
	"github.com/nidhogg/honeycomb/internal/task"
)

// DefaultContextLimit is how many entries /context shows without an argument.
const DefaultContextLimit = 10

// Deps are the components the builtin commands operate on.
type Deps struct {
	Tasks       *task.Queue
	Agents      *agent.Registry
	Context     *contextdb.Store
	Coordinator *coordinator.Coordinator
	// Providers is optional; /providers is only registered when set.
	Providers ProviderLister
}

// ProviderLister reports the configured LLM providers.
type ProviderLister interface {
	Providers() []provider.Info
}

// RegisterBuiltins registers /help, /agents, /tasks, /task, /add,
// /process, /context, /summary and, with a provider lister, /providers.
func RegisterBuiltins(reg *Registry, d Deps) {
	reg.Register(helpCommand(reg))
	reg.Register(agentsCommand(d.Agents))
	reg.Register(tasksCommand(d.Tasks))
	reg.Register(taskCommand(d.Tasks))
	reg.Register(addCommand(d.Tasks))
	reg.Register(processCommand(d.Coordinator))
	reg.Register(contextCommand(d.Context))
	reg.Register(summaryCommand(d.Coordinator))
	if d.Providers != nil {
		reg.Register(providersCommand(d.Providers))
	}
}

func helpCommand(reg *Registry) *Command {
	return &Command{
		Name:        "help",
		Description: "List all available commands",
		Usage:       "/help",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			var b strings.Builder
			b.WriteString("Available commands:\n")
			for _, c := range reg.List() {
				fmt.Fprintf(&b, "  /%s: %s\n", c.Name, c.Description)
				if len(c.Aliases) > 0 {
					fmt.Fprintf(&b, "    Aliases: /%s\n", strings.Join(c.Aliases, ", /"))
				}
				if c.Usage != "" {
					fmt.Fprintf(&b, "    Usage: %s\n", c.Usage)
				}
			}
			return &CommandResult{Content: b.String()}, nil
		},
	}
}

func agentsCommand(agents *agent.Registry) *Command {
	return &Command{
		Name:        "agents",
		Description: "List registered agents",
		Usage:       "/agents",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			list := agents.List()
			if len(list) == 0 {
				return &CommandResult{Content: "No agents registered.", Data: list}, nil
			}
			var b strings.Builder
			b.WriteString("Registered agents:\n")
			for _, a := range list {
				fmt.Fprintf(&b, "  [%s] %s (specialty: %s, status: %s)\n",
					a.ID, a.Name, a.Specialty, a.Status)
			}
			return &CommandResult{Content: b.String(), Data: list}, nil
		},
	}
}

func tasksCommand(tasks *task.Queue) *Command {
	return &Command{
		Name:        "tasks",
		Aliases:     []string{"ls"},
		Description: "List tasks in creation order",
		Usage:       "/tasks [pending|assigned|completed|failed]",
		Handler: func(ctx context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			list, err := tasks.ListByStatus(ctx, task.Status(args))
			if err != nil {
				return nil, err
			}
			if len(list) == 0 {
				return &CommandResult{Content: "No tasks found.", Data: list}, nil
			}
			var b strings.Builder
			for _, t := range list {
				fmt.Fprintf(&b, "[%s] %s (%s): %s\n", t.Status, t.ID, t.Type, t.Description)
			}
			return &CommandResult{Content: b.String(), Data: list}, nil
		},
	}
}

func taskCommand(tasks *task.Queue) *Command {
	return &Command{
		Name:        "task",
		Description: "Show one task with its result",
		Usage:       "/task <id>",
		Handler: func(ctx context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			if args == "" {
				return nil, ErrUsage
			}
			t, err := tasks.Get(ctx, args)
			if err != nil {
				return nil, err
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Task %s\n  type: %s\n  status: %s\n  description: %s\n", t.ID, t.Type, t.Status, t.Description)
			if t.AgentID != "" {
				fmt.Fprintf(&b, "  agent: %s\n", t.AgentID)
			}
			if t.Result != nil {
				fmt.Fprintf(&b, "  result: %s\n", render(t.Result))
			}
			if t.Error != "" {
				fmt.Fprintf(&b, "  error: %s\n", t.Error)
			}
			return &CommandResult{Content: b.String(), Data: t}, nil
		},
	}
}

func addCommand(tasks *task.Queue) *Command {
	return &Command{
		Name:        "add",
		Aliases:     []string{"new"},
		Description: "Submit a new pending task",
		Usage:       `/add <type> <description> [{"json":"params"}]`,
		Handler: func(ctx context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			taskType, rest, _ := strings.Cut(args, " ")
			if taskType == "" {
				return nil, ErrUsage
			}
			desc, params := splitParams(strings.TrimSpace(rest))
			id, err := tasks.Create(ctx, desc, taskType, params)
			if err != nil {
				return nil, err
			}
			return &CommandResult{
				Content: fmt.Sprintf("Task created with ID: %s", id),
				Data:    map[string]string{"id": id},
			}, nil
		},
	}
}

// splitParams separates a trailing JSON object from the description.
func splitParams(s string) (string, map[string]any) {
	for i := strings.Index(s, "{"); i >= 0; {
		var params map[string]any
		if err := json.Unmarshal([]byte(s[i:]), &params); err == nil {
			return strings.TrimSpace(s[:i]), params
		}
		next := strings.Index(s[i+1:], "{")
		if next < 0 {
			break
		}
		i += next + 1
	}
	return s, nil
}

func processCommand(coord *coordinator.Coordinator) *Command {
	return &Command{
		Name:        "process",
		Aliases:     []string{"run"},
		Description: "Run every pending task once",
		Usage:       "/process",
		Handler: func(ctx context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			report, err := coord.ProcessPending(ctx)
			if err != nil {
				return nil, err
			}
			return &CommandResult{Content: report.String(), Data: report}, nil
		},
	}
}

func contextCommand(cx *contextdb.Store) *Command {
	return &Command{
		Name:        "context",
		Description: "Show the latest context entries",
		Usage:       "/context [limit]",
		Handler: func(ctx context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			limit, err := parseLimit(args, DefaultContextLimit)
			if err != nil {
				return nil, err
			}
			entries, err := cx.Latest(ctx, limit)
			if err != nil {
				return nil, err
			}
			if len(entries) == 0 {
				return &CommandResult{Content: "No context entries.", Data: entries}, nil
			}
			var b strings.Builder
			for _, e := range entries {
				fmt.Fprintf(&b, "[%s] %s: %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Type, e.Content)
			}
			return &CommandResult{Content: b.String(), Data: entries}, nil
		},
	}
}

func summaryCommand(coord *coordinator.Coordinator) *Command {
	return &Command{
		Name:        "summary",
		Description: "Summarize recent context entries",
		Usage:       "/summary [limit]",
		Handler: func(ctx context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			limit, err := parseLimit(args, 0)
			if err != nil {
				return nil, err
			}
			t, outcome, err := coord.Summarize(ctx, limit)
			if err != nil {
				return nil, err
			}
			if outcome.Kind != coordinator.OutcomeCompleted {
				return &CommandResult{Content: "Summary " + outcome.String(), Data: outcome}, nil
			}
			return &CommandResult{Content: render(t.Result), Data: t}, nil
		},
	}
}

func providersCommand(providers ProviderLister) *Command {
	return &Command{
		Name:        "providers",
		Description: "List LLM providers and the specialties routed to them",
		Usage:       "/providers",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			list := providers.Providers()
			if len(list) == 0 {
				return &CommandResult{Content: "No providers configured.", Data: list}, nil
			}
			var b strings.Builder
			for _, p := range list {
				state := "ready"
				if !p.Ready {
					state = "no credential"
				}
				fmt.Fprintf(&b, "%s (%s): %s", p.ID, p.Name, state)
				if p.Default {
					b.WriteString(", default")
				}
				if len(p.Routes) > 0 {
					fmt.Fprintf(&b, ", routes: %s", strings.Join(p.Routes, ", "))
				}
				b.WriteString("\n")
			}
			return &CommandResult{Content: b.String(), Data: list}, nil
		},
	}
}

func parseLimit(args string, def int) (int, error) {
	if args == "" {
		return def, nil
	}
	n, err := strconv.Atoi(args)
	if err != nil || n <= 0 {
		return 0, usageErr("limit must be a positive number, got %q", args)
	}
	return n, nil
}

func render(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
