package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nidhogg/honeycomb/internal/contextdb"
	"github.com/nidhogg/honeycomb/internal/provider"
	"github.com/nidhogg/honeycomb/internal/store"
	"github.com/nidhogg/honeycomb/internal/task"
	"go.uber.org/zap"
)

type fakeChat struct {
	reply string
	err   error
	calls []chatCall
}

type chatCall struct {
	route string
	req   *provider.ChatRequest
}

func (f *fakeChat) Route(_ context.Context, route string, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	f.calls = append(f.calls, chatCall{route: route, req: req})
	if f.err != nil {
		return nil, f.err
	}
	return &provider.ChatResponse{Content: f.reply}, nil
}

func newContext() *contextdb.Store {
	return contextdb.NewStore(store.NewMemory(zap.NewNop()), zap.NewNop())
}

func newTask(typ, desc string, params map[string]any) *task.Task {
	return &task.Task{ID: "task-1", Type: typ, Description: desc, Params: params, Status: task.StatusAssigned}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&Command{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(&Command{}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
	_ = r.Register(&Writing{})
	if _, ok := r.Get("command"); !ok {
		t.Error("command not found")
	}
	if got := r.Specialties(); len(got) != 2 || got[0] != "command" || got[1] != "writing" {
		t.Errorf("specialties = %v", got)
	}
}

func TestWritingUsesContextAndRecordsPreview(t *testing.T) {
	ctx := context.Background()
	cx := newContext()
	_, _ = cx.Append(ctx, contextdb.Entry{Content: "launch is on friday"})
	chat := &fakeChat{reply: strings.Repeat("a", 150)}
	w := &Writing{Chat: chat}

	res, err := w.Execute(ctx, newTask("writing", "announce launch", map[string]any{"tone": "casual"}), cx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res != chat.reply {
		t.Errorf("result should be the model output")
	}
	if len(chat.calls) != 1 {
		t.Fatalf("expected one call, got %d", len(chat.calls))
	}
	call := chat.calls[0]
	if call.route != "writing" || call.req.Temperature != 0.7 {
		t.Errorf("unexpected call: route=%s temp=%v", call.route, call.req.Temperature)
	}
	prompt := call.req.Messages[0].Content
	for _, want := range []string{"Task: announce launch", "Tone: casual", "Length: medium", "launch is on friday"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}

	latest, _ := cx.Latest(ctx, 1)
	if latest[0].Type != "writing_result" || latest[0].TaskID != "task-1" {
		t.Errorf("unexpected context entry: %+v", latest[0])
	}
	want := "Writing task result: " + strings.Repeat("a", 100) + "..."
	if latest[0].Content != want {
		t.Errorf("preview = %q", latest[0].Content)
	}
}

func TestLLMFailurePropagates(t *testing.T) {
	ctx := context.Background()
	cx := newContext()
	chat := &fakeChat{err: ErrNoCredential}
	for _, wf := range []WorkFunction{&Writing{Chat: chat}, &Research{Chat: chat}, &Coding{Chat: chat}} {
		_, err := wf.Execute(ctx, newTask(wf.Specialty(), "x", nil), cx)
		if !errors.Is(err, ErrNoCredential) {
			t.Errorf("%s: expected ErrNoCredential, got %v", wf.Specialty(), err)
		}
	}
	entries, _ := cx.Latest(ctx, 10)
	if len(entries) != 0 {
		t.Errorf("failed calls must not append context: %+v", entries)
	}
}

func TestResearchDefaults(t *testing.T) {
	chat := &fakeChat{reply: "findings"}
	r := &Research{Chat: chat, Model: "claude-x"}
	if _, err := r.Execute(context.Background(), newTask("research", "bees", nil), newContext()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	req := chat.calls[0].req
	if chat.calls[0].route != "research" || req.Model != "claude-x" || req.Temperature != 0.5 {
		t.Errorf("unexpected request: %+v", req)
	}
	if !strings.Contains(req.Messages[0].Content, "Research on bees") || !strings.Contains(req.Messages[0].Content, "Depth: medium") {
		t.Errorf("unexpected prompt: %s", req.Messages[0].Content)
	}
}

func TestCodingWritesFirstBlock(t *testing.T) {
	dir := t.TempDir()
	reply := "Here you go:\n```python\nprint('hi')\n```\nand more\n```go\nfmt.Println()\n```"
	c := &Coding{Chat: &fakeChat{reply: reply}, Workdir: dir}

	res, err := c.Execute(context.Background(),
		newTask("coding", "say hi", map[string]any{"file_path": "out/hi.py"}), newContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "out", "hi.py"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "print('hi')" {
		t.Errorf("file content = %q", data)
	}
	if s, _ := res.(string); !strings.HasPrefix(s, "Code saved to out/hi.py:") {
		t.Errorf("unexpected result %q", res)
	}
}

func TestCodingWriteFailureStillCompletes(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	_ = os.WriteFile(blocker, []byte("x"), 0o644)
	c := &Coding{Chat: &fakeChat{reply: "code"}}

	res, err := c.Execute(context.Background(),
		newTask("coding", "x", map[string]any{"file_path": filepath.Join(blocker, "a.py")}), newContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if s, _ := res.(string); !strings.HasPrefix(s, "Error saving code to file:") {
		t.Errorf("unexpected result %q", res)
	}
}

func TestExtractCode(t *testing.T) {
	if got := extractCode("no fences here"); got != "no fences here" {
		t.Errorf("got %q", got)
	}
	if got := extractCode("```\nplain\n```"); got != "plain" {
		t.Errorf("got %q", got)
	}
}

func TestCommandSuccess(t *testing.T) {
	ctx := context.Background()
	cx := newContext()
	res, err := (&Command{}).Execute(ctx, newTask("command", "", map[string]any{"command": "echo hello"}), cx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	cr := res.(CommandResult)
	if cr.ReturnCode != 0 || cr.Stdout != "hello\n" || cr.Command != "echo hello" {
		t.Errorf("unexpected result: %+v", cr)
	}
	latest, _ := cx.Latest(ctx, 1)
	if latest[0].Content != "Command executed: echo hello" || latest[0].Type != "command_result" {
		t.Errorf("unexpected context entry: %+v", latest[0])
	}
}

func TestCommandNonZeroExit(t *testing.T) {
	res, err := (&Command{}).Execute(context.Background(),
		newTask("command", "echo oops >&2; exit 3", nil), newContext())
	if err != nil {
		t.Fatalf("non-zero exit must not be an error: %v", err)
	}
	cr := res.(CommandResult)
	if cr.ReturnCode != 3 || cr.Stderr != "oops\n" {
		t.Errorf("unexpected result: %+v", cr)
	}
}

func TestCommandEmpty(t *testing.T) {
	if _, err := (&Command{}).Execute(context.Background(), newTask("command", "  ", nil), newContext()); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestCommandStartFailure(t *testing.T) {
	c := &Command{Shell: filepath.Join(t.TempDir(), "no-such-shell")}
	if _, err := c.Execute(context.Background(), newTask("command", "true", nil), newContext()); err == nil {
		t.Fatal("expected error when the shell cannot start")
	}
}

func TestSummaryEmpty(t *testing.T) {
	chat := &fakeChat{reply: "unused"}
	res, err := (&Summary{Chat: chat}).Execute(context.Background(), newTask("context_summary", "", nil), newContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res != NoContextMessage || len(chat.calls) != 0 {
		t.Errorf("unexpected result %v with %d calls", res, len(chat.calls))
	}
}

func TestSummaryAppendsDailySummary(t *testing.T) {
	ctx := context.Background()
	cx := newContext()
	for _, c := range []string{"one", "two", "three"} {
		_, _ = cx.Append(ctx, contextdb.Entry{Content: c, Type: "note"})
	}
	chat := &fakeChat{reply: "all good"}

	res, err := (&Summary{Chat: chat}).Execute(ctx, newTask("context_summary", "", map[string]any{"limit": float64(2)}), cx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res != "all good" {
		t.Errorf("result = %v", res)
	}
	prompt := chat.calls[0].req.Messages[0].Content
	if !strings.Contains(prompt, "note: three") || !strings.Contains(prompt, "note: two") || strings.Contains(prompt, "note: one") {
		t.Errorf("prompt should cover the 2 latest entries:\n%s", prompt)
	}
	latest, _ := cx.Latest(ctx, 1)
	if latest[0].Type != "daily_summary" || latest[0].Content != "all good" {
		t.Errorf("unexpected entry: %+v", latest[0])
	}
}
