package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nidhogg/honeycomb/internal/agent"
	"github.com/nidhogg/honeycomb/internal/contextdb"
	"github.com/nidhogg/honeycomb/internal/task"
)

// runBackendSuite exercises the contract every backend must honour.
func runBackendSuite(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("tasks", func(t *testing.T) {
		for i, id := range []string{"t-1", "t-2", "t-3"} {
			err := b.InsertTask(ctx, &task.Task{
				ID:          id,
				Description: "desc " + id,
				Type:        "writing",
				Params:      map[string]any{"tone": "casual"},
				Status:      task.StatusPending,
				CreatedAt:   base.Add(time.Duration(i) * time.Second),
			})
			if err != nil {
				t.Fatalf("insert %s: %v", id, err)
			}
		}

		got, err := b.GetTask(ctx, "t-2")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Description != "desc t-2" || got.Params["tone"] != "casual" {
			t.Errorf("unexpected task: %+v", got)
		}
		if !got.CreatedAt.Equal(base.Add(time.Second)) {
			t.Errorf("created_at = %v", got.CreatedAt)
		}

		if _, err := b.GetTask(ctx, "missing"); !errors.Is(err, task.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		now := base.Add(time.Minute)
		err = b.UpdateTask(ctx, "t-1", func(tk *task.Task) error {
			return task.Apply(tk, task.StatusAssigned, task.Fields{AgentID: "a-1"}, now)
		})
		if err != nil {
			t.Fatalf("assign: %v", err)
		}
		err = b.UpdateTask(ctx, "t-1", func(tk *task.Task) error {
			return task.Apply(tk, task.StatusCompleted, task.Fields{Result: "OK"}, now)
		})
		if err != nil {
			t.Fatalf("complete: %v", err)
		}

		// A rejected update leaves the stored task untouched.
		err = b.UpdateTask(ctx, "t-1", func(tk *task.Task) error {
			return task.Apply(tk, task.StatusFailed, task.Fields{Error: "late"}, now)
		})
		if !errors.Is(err, task.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
		done, _ := b.GetTask(ctx, "t-1")
		if done.Status != task.StatusCompleted || done.Result != "OK" || done.Error != "" {
			t.Errorf("unexpected terminal task: %+v", done)
		}
		if done.AgentID != "a-1" || done.AssignedAt == nil || done.CompletedAt == nil {
			t.Errorf("assignment fields not stored: %+v", done)
		}

		if err := b.UpdateTask(ctx, "missing", func(*task.Task) error { return nil }); !errors.Is(err, task.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		pending, err := b.ListTasks(ctx, task.StatusPending)
		if err != nil {
			t.Fatalf("list pending: %v", err)
		}
		if len(pending) != 2 || pending[0].ID != "t-2" || pending[1].ID != "t-3" {
			t.Errorf("pending not in creation order: %v", taskIDs(pending))
		}
		all, _ := b.ListTasks(ctx, "")
		if len(all) != 3 || all[0].ID != "t-1" {
			t.Errorf("all tasks = %v", taskIDs(all))
		}
	})

	t.Run("context", func(t *testing.T) {
		same := base.Add(time.Hour)
		entries := []contextdb.Entry{
			{ID: "c-1", Content: "first", Type: "general", CreatedAt: base},
			{ID: "c-2", Content: "second", Type: "writing_result", TaskID: "t-1", CreatedAt: same},
			{ID: "c-3", Content: "third", Type: "general", CreatedAt: same},
		}
		for i := range entries {
			if err := b.AppendContext(ctx, &entries[i]); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
		got, err := b.LatestContext(ctx, 10)
		if err != nil {
			t.Fatalf("latest: %v", err)
		}
		want := []string{"c-3", "c-2", "c-1"}
		if len(got) != len(want) {
			t.Fatalf("expected %d entries, got %d", len(want), len(got))
		}
		for i, id := range want {
			if got[i].ID != id {
				t.Errorf("entry %d: expected %s, got %s", i, id, got[i].ID)
			}
		}
		if got[1].TaskID != "t-1" {
			t.Errorf("task_id lost: %+v", got[1])
		}
		two, _ := b.LatestContext(ctx, 2)
		if len(two) != 2 || two[0].ID != "c-3" {
			t.Errorf("limit 2 = %+v", two)
		}
	})

	t.Run("agents", func(t *testing.T) {
		a := &agent.Agent{ID: "a-1", Name: "WriteBot", Specialty: "writing",
			Status: agent.StatusIdle, RegisteredAt: base, UpdatedAt: base}
		if err := b.SaveAgent(ctx, a); err != nil {
			t.Fatalf("save: %v", err)
		}
		a.Status = agent.StatusBusy
		if err := b.SaveAgent(ctx, a); err != nil {
			t.Fatalf("save again: %v", err)
		}
		agents, err := b.ListAgents(ctx)
		if err != nil {
			t.Fatalf("list agents: %v", err)
		}
		if len(agents) != 1 || agents[0].Status != agent.StatusBusy {
			t.Errorf("agents = %+v", agents)
		}
	})
}

func taskIDs(tasks []*task.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
