package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nidhogg/honeycomb/internal/agent"
	"github.com/nidhogg/honeycomb/internal/command"
	"github.com/nidhogg/honeycomb/internal/contextdb"
	"github.com/nidhogg/honeycomb/internal/coordinator"
	"github.com/nidhogg/honeycomb/internal/task"
)

// Client talks to a running honeycomb server.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the server at base.
func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Minute},
	}
}

// SummaryResult is the reply of POST /api/summary.
type SummaryResult struct {
	Task    *task.Task          `json:"task,omitempty"`
	Outcome coordinator.Outcome `json:"outcome"`
}

func (c *Client) ListAgents(ctx context.Context) ([]agent.Agent, error) {
	var out []agent.Agent
	return out, c.do(ctx, http.MethodGet, "/api/agents", nil, &out)
}

func (c *Client) ListTasks(ctx context.Context, status string) ([]task.Task, error) {
	path := "/api/tasks"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var out []task.Task
	return out, c.do(ctx, http.MethodGet, path, nil, &out)
}

func (c *Client) GetTask(ctx context.Context, id string) (*task.Task, error) {
	var out task.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateTask(ctx context.Context, taskType, description string, params map[string]any) (*task.Task, error) {
	in := map[string]any{"type": taskType, "description": description, "params": params}
	var out task.Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Process(ctx context.Context) (*coordinator.Report, error) {
	var out coordinator.Report
	if err := c.do(ctx, http.MethodPost, "/api/process", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Context(ctx context.Context, limit int) ([]contextdb.Entry, error) {
	var out []contextdb.Entry
	return out, c.do(ctx, http.MethodGet, "/api/context?limit="+strconv.Itoa(limit), nil, &out)
}

func (c *Client) Summary(ctx context.Context, limit int) (*SummaryResult, error) {
	var out SummaryResult
	if err := c.do(ctx, http.MethodPost, "/api/summary", map[string]int{"limit": limit}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Command(ctx context.Context, input, user string) (*command.CommandResult, error) {
	var out command.CommandResult
	in := map[string]string{"command": input, "user_name": user}
	if err := c.do(ctx, http.MethodPost, "/api/command", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
