package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUsage marks a handler error caused by bad arguments. Dispatch turns
// it into a reply carrying the command's usage line.
var ErrUsage = errors.New("invalid arguments")

// Command represents a slash command.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Handler     CommandHandler
}

// CommandHandler is the function signature for command execution.
type CommandHandler func(ctx context.Context, args string, cc *CommandContext) (*CommandResult, error)

// CommandContext describes who issued a command.
type CommandContext struct {
	Source   string // "api", "repl", ...
	UserName string
}

// CommandResult holds the output of a command.
type CommandResult struct {
	Content string `json:"content"`
	Data    any    `json:"data,omitempty"`
}

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]string // alias -> command name
	mu       sync.RWMutex
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]string),
	}
}

// Register adds a command. Re-registering a name replaces the command.
func (r *Registry) Register(cmd *Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := strings.ToLower(cmd.Name)
	r.commands[name] = cmd
	for _, a := range cmd.Aliases {
		r.aliases[strings.ToLower(a)] = name
	}
}

func (r *Registry) lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[name]; ok {
		return cmd, true
	}
	if target, ok := r.aliases[name]; ok {
		cmd, ok := r.commands[target]
		return cmd, ok
	}
	return nil, false
}

// Dispatch runs "/name args..." (the leading slash is optional). Unknown
// commands and usage errors become replies; other handler errors are
// returned so callers can map them.
func (r *Registry) Dispatch(ctx context.Context, input string, cc *CommandContext) (*CommandResult, error) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "/")
	if input == "" {
		return &CommandResult{Content: "Type /help for available commands."}, nil
	}
	name, args, _ := strings.Cut(input, " ")
	name = strings.ToLower(name)

	cmd, ok := r.lookup(name)
	if !ok {
		return &CommandResult{
			Content: fmt.Sprintf("Unknown command: /%s. Type /help for available commands.", name),
		}, nil
	}
	if cc == nil {
		cc = &CommandContext{}
	}
	res, err := cmd.Handler(ctx, strings.TrimSpace(args), cc)
	if errors.Is(err, ErrUsage) {
		return &CommandResult{Content: usageReply(cmd, err)}, nil
	}
	return res, err
}

func usageReply(cmd *Command, err error) string {
	detail := strings.TrimSuffix(err.Error(), ErrUsage.Error())
	detail = strings.TrimRight(detail, ": ")
	if detail == "" {
		return "Usage: " + cmd.Usage
	}
	return detail + "\nUsage: " + cmd.Usage
}

// usageErr wraps a detail message so Dispatch replies with usage.
func usageErr(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, ErrUsage)...)
}

// List returns all registered commands sorted by name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		result = append(result, cmd)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}
