package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/nidhogg/honeycomb/internal/contextdb"
	"github.com/nidhogg/honeycomb/internal/task"
)

// waitDelay bounds how long a killed command may hold its output pipes open.
const waitDelay = 2 * time.Second

// CommandResult is the structured result of a command task.
// A non-zero ReturnCode still completes the task.
type CommandResult struct {
	Command    string `json:"command"`
	ReturnCode int    `json:"return_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
}

// Command runs a shell command with `sh -c`.
type Command struct {
	Shell   string
	Workdir string
}

func (c *Command) Specialty() string { return "command" }

func (c *Command) Execute(ctx context.Context, t *task.Task, cx ContextIO) (any, error) {
	var p CommandParams
	if err := decodeParams(t.Params, &p); err != nil {
		return nil, err
	}
	command := strings.TrimSpace(orDefault(p.Command, t.Description))
	if command == "" {
		return nil, errors.New("no command provided")
	}

	shell := c.Shell
	if shell == "" {
		shell = "sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = c.Workdir
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res := CommandResult{Command: command}
	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case ctx.Err() != nil:
		return nil, fmt.Errorf("run command: %w", ctx.Err())
	case errors.As(err, &exitErr):
		res.ReturnCode = exitErr.ExitCode()
	case err != nil:
		return nil, fmt.Errorf("run command: %w", err)
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if _, err := cx.Append(ctx, contextdb.Entry{
		Content: "Command executed: " + command,
		Type:    "command_result",
		TaskID:  t.ID,
	}); err != nil {
		return nil, err
	}
	return res, nil
}
