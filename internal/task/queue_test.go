package task_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nidhogg/honeycomb/internal/store"
	"github.com/nidhogg/honeycomb/internal/task"
	"go.uber.org/zap"
)

func newQueue() *task.Queue {
	return task.NewQueue(store.NewMemory(zap.NewNop()), zap.NewNop())
}

func TestCreateStartsPending(t *testing.T) {
	ctx := context.Background()
	q := newQueue()
	id, err := q.Create(ctx, "write a haiku", "writing", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := q.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != task.StatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
	if got.Params == nil {
		t.Error("params should default to an empty map")
	}
	if got.CreatedAt.IsZero() || got.AssignedAt != nil || got.CompletedAt != nil {
		t.Errorf("unexpected timestamps: %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	_, err := newQueue().Get(context.Background(), "nope")
	if !errors.Is(err, task.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	q := newQueue()
	id, _ := q.Create(ctx, "ls", "command", map[string]any{"command": "ls"})

	if err := q.Complete(ctx, id, "early"); !errors.Is(err, task.ErrInvalidTransition) {
		t.Fatalf("complete before assign: expected ErrInvalidTransition, got %v", err)
	}
	if err := q.Assign(ctx, id, "agent-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := q.Assign(ctx, id, "agent-2"); !errors.Is(err, task.ErrInvalidTransition) {
		t.Fatalf("double assign: expected ErrInvalidTransition, got %v", err)
	}
	if err := q.Fail(ctx, id, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	got, _ := q.Get(ctx, id)
	if got.Status != task.StatusFailed || got.Error != "boom" || got.Result != nil {
		t.Errorf("unexpected failed task: %+v", got)
	}
	if got.AgentID != "agent-1" {
		t.Errorf("expected agent-1, got %q", got.AgentID)
	}
	if got.AssignedAt == nil || got.CompletedAt == nil {
		t.Errorf("timestamps not stamped: %+v", got)
	}
	if err := q.Complete(ctx, id, "late"); !errors.Is(err, task.ErrInvalidTransition) {
		t.Fatalf("complete after fail: expected ErrInvalidTransition, got %v", err)
	}
}

func TestFailWithoutReason(t *testing.T) {
	ctx := context.Background()
	q := newQueue()
	id, _ := q.Create(ctx, "x", "writing", nil)
	_ = q.Assign(ctx, id, "a")
	if err := q.Fail(ctx, id, ""); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, _ := q.Get(ctx, id)
	if got.Error == "" {
		t.Error("failed task must carry a non-empty error")
	}
}

func TestTransitionMissing(t *testing.T) {
	err := newQueue().Assign(context.Background(), "nope", "a")
	if !errors.Is(err, task.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListByStatusOrder(t *testing.T) {
	ctx := context.Background()
	q := newQueue()
	var ids []string
	for _, d := range []string{"one", "two", "three"} {
		id, _ := q.Create(ctx, d, "writing", nil)
		ids = append(ids, id)
	}
	_ = q.Assign(ctx, ids[1], "a")

	pending, err := q.ListByStatus(ctx, task.StatusPending)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != ids[0] || pending[1].ID != ids[2] {
		t.Errorf("unexpected pending order: %+v", pending)
	}
	assigned, _ := q.ListByStatus(ctx, task.StatusAssigned)
	if len(assigned) != 1 || assigned[0].ID != ids[1] {
		t.Errorf("unexpected assigned: %+v", assigned)
	}
	all, _ := q.List(ctx)
	if len(all) != 3 {
		t.Errorf("expected 3 tasks, got %d", len(all))
	}
}
