package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nidhogg/honeycomb/internal/agent"
	"github.com/nidhogg/honeycomb/internal/command"
	"github.com/nidhogg/honeycomb/internal/contextdb"
	"github.com/nidhogg/honeycomb/internal/coordinator"
	"github.com/nidhogg/honeycomb/internal/notify"
	"github.com/nidhogg/honeycomb/internal/store"
	"github.com/nidhogg/honeycomb/internal/task"
	"github.com/nidhogg/honeycomb/internal/worker"
	"go.uber.org/zap"
)

type stubWork struct {
	specialty string
	err       error
}

func (s stubWork) Specialty() string { return s.specialty }

func (s stubWork) Execute(_ context.Context, t *task.Task, cx worker.ContextIO) (any, error) {
	if s.err != nil {
		return nil, s.err
	}
	return "done: " + t.Description, nil
}

type testEnv struct {
	ts     *httptest.Server
	tasks  *task.Queue
	agents *agent.Registry
	cx     *contextdb.Store
}

// newTestEnv wires a Handler over an in-memory store.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	backend := store.NewMemory(logger)
	env := &testEnv{
		tasks:  task.NewQueue(backend, logger),
		agents: agent.NewRegistry(logger),
		cx:     contextdb.NewStore(backend, logger),
	}
	works := worker.NewRegistry()
	_ = works.Register(stubWork{specialty: "writing"})
	_ = works.Register(stubWork{specialty: "coding", err: errors.New("compiler on fire")})
	coord := coordinator.New(env.tasks, env.agents, works, env.cx, logger)
	events := notify.NewBroadcaster(logger)
	coord.SetNotifier(events)

	commands := command.NewRegistry()
	command.RegisterBuiltins(commands, command.Deps{Tasks: env.tasks, Agents: env.agents, Context: env.cx, Coordinator: coord})

	h := NewHandler(env.tasks, env.agents, env.cx, coord, commands, events, logger)
	env.ts = httptest.NewServer(h.Router())
	t.Cleanup(env.ts.Close)
	return env
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	resp := getJSON(t, env.ts, "/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestCreateAndGetTask(t *testing.T) {
	env := newTestEnv(t)
	resp := postJSON(t, env.ts, "/api/tasks", map[string]any{
		"description": "a blog post",
		"type":        "writing",
		"params":      map[string]any{"tone": "casual"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var created task.Task
	decodeJSON(t, resp, &created)
	if created.ID == "" || created.Status != task.StatusPending || created.Params["tone"] != "casual" {
		t.Errorf("unexpected task: %+v", created)
	}

	resp = getJSON(t, env.ts, "/api/tasks/"+created.ID)
	var got task.Task
	decodeJSON(t, resp, &got)
	if got.ID != created.ID || got.Description != "a blog post" {
		t.Errorf("unexpected task: %+v", got)
	}

	resp = getJSON(t, env.ts, "/api/tasks?status=pending")
	var list []task.Task
	decodeJSON(t, resp, &list)
	if len(list) != 1 {
		t.Errorf("expected 1 pending task, got %d", len(list))
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	resp := postJSON(t, env.ts, "/api/tasks", map[string]any{"description": "no type"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	resp, err := http.Post(env.ts.URL+"/api/tasks", "application/json", bytes.NewReader([]byte("{")))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	env := newTestEnv(t)
	resp := getJSON(t, env.ts, "/api/tasks/does-not-exist")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestProcessPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, _ = env.agents.Register(ctx, "WriteBot", "writing")
	_, _ = env.agents.Register(ctx, "CodeBot", "coding")
	w, _ := env.tasks.Create(ctx, "hello", "writing", nil)
	c, _ := env.tasks.Create(ctx, "parser", "coding", nil)
	r, _ := env.tasks.Create(ctx, "bees", "research", nil)

	resp := postJSON(t, env.ts, "/api/process", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var report coordinator.Report
	decodeJSON(t, resp, &report)
	if len(report.Outcomes) != 3 {
		t.Fatalf("outcomes = %+v", report.Outcomes)
	}

	want := map[string]task.Status{w: task.StatusCompleted, c: task.StatusFailed, r: task.StatusPending}
	for id, status := range want {
		got, _ := env.tasks.Get(ctx, id)
		if got.Status != status {
			t.Errorf("task %s: status %s, want %s", got.Type, got.Status, status)
		}
	}

	resp = getJSON(t, env.ts, "/api/events")
	var events []notify.Event
	decodeJSON(t, resp, &events)
	if len(events) != 4 {
		t.Errorf("expected 4 events, got %+v", events)
	}
}

func TestRunTaskConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, _ = env.agents.Register(ctx, "WriteBot", "writing")
	id, _ := env.tasks.Create(ctx, "hello", "writing", nil)

	resp := postJSON(t, env.ts, "/api/tasks/"+id+"/run", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first run status = %d", resp.StatusCode)
	}
	resp = postJSON(t, env.ts, "/api/tasks/"+id+"/run", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second run status = %d, want 409", resp.StatusCode)
	}
}

func TestAgentsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	resp := postJSON(t, env.ts, "/api/agents", map[string]string{"name": "WriteBot", "specialty": "writing"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var a agent.Agent
	decodeJSON(t, resp, &a)
	if a.ID == "" || a.Status != agent.StatusIdle {
		t.Errorf("unexpected agent: %+v", a)
	}

	resp = getJSON(t, env.ts, "/api/agents")
	var list []agent.Agent
	decodeJSON(t, resp, &list)
	if len(list) != 1 || list[0].Name != "WriteBot" {
		t.Errorf("unexpected agents: %+v", list)
	}

	resp = getJSON(t, env.ts, "/api/agents/missing")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	resp = postJSON(t, env.ts, "/api/agents", map[string]string{"name": "NoSpecialty"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestContextEndpoints(t *testing.T) {
	env := newTestEnv(t)
	for _, c := range []string{"one", "two", "three"} {
		resp := postJSON(t, env.ts, "/api/context", map[string]string{"content": c})
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("append status = %d", resp.StatusCode)
		}
	}

	resp := getJSON(t, env.ts, "/api/context?limit=2")
	var entries []contextdb.Entry
	decodeJSON(t, resp, &entries)
	if len(entries) != 2 || entries[0].Content != "three" || entries[1].Content != "two" {
		t.Errorf("unexpected entries: %+v", entries)
	}
	if entries[0].Type != contextdb.TypeGeneral {
		t.Errorf("default type = %q", entries[0].Type)
	}

	resp = getJSON(t, env.ts, "/api/context?limit=abc")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSummaryWithoutAgent(t *testing.T) {
	env := newTestEnv(t)
	resp := postJSON(t, env.ts, "/api/summary", map[string]int{"limit": 5})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body summaryResponse
	decodeJSON(t, resp, &body)
	if body.Outcome.Kind != coordinator.OutcomeUnassignable || body.Task.Type != coordinator.SummaryType {
		t.Errorf("unexpected response: %+v", body)
	}
}

func TestCommandEndpoint(t *testing.T) {
	env := newTestEnv(t)
	resp := postJSON(t, env.ts, "/api/command", map[string]string{"command": "/add writing a haiku"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var res command.CommandResult
	decodeJSON(t, resp, &res)
	if res.Content == "" {
		t.Error("expected a reply")
	}

	tasks, _ := env.tasks.List(context.Background())
	if len(tasks) != 1 || tasks[0].Description != "a haiku" {
		t.Errorf("unexpected tasks: %+v", tasks)
	}
}
