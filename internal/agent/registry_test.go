package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/nidhogg/honeycomb/internal/task"
	"go.uber.org/zap"
)

type fakePersister struct {
	saved []Agent
	err   error
}

func (f *fakePersister) SaveAgent(_ context.Context, a *Agent) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, *a)
	return nil
}

func TestRegisterAndFind(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(zap.NewNop())
	first, _ := r.Register(ctx, "WriteBot", "writing")
	_, _ = r.Register(ctx, "WriteBot2", "writing")
	_, _ = r.Register(ctx, "CodeBot", "coding")

	a, ok := r.FindFor(&task.Task{Type: "writing"})
	if !ok || a.ID != first {
		t.Fatalf("expected first registered writer, got %+v", a)
	}
	if _, ok := r.FindFor(&task.Task{Type: "research"}); ok {
		t.Error("expected no match for research")
	}
	if _, ok := r.FindFor(&task.Task{Type: "Writing"}); ok {
		t.Error("matching must be exact")
	}

	list := r.List()
	if len(list) != 3 || list[2].Name != "CodeBot" {
		t.Errorf("unexpected list: %+v", list)
	}
	for _, a := range list {
		if a.Status != StatusIdle {
			t.Errorf("%s registered as %s", a.Name, a.Status)
		}
	}
}

func TestFindForIgnoresBusy(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(zap.NewNop())
	first, _ := r.Register(ctx, "A", "writing")
	_, _ = r.Register(ctx, "B", "writing")
	_ = r.SetStatus(ctx, first, StatusBusy)

	a, ok := r.FindFor(&task.Task{Type: "writing"})
	if !ok || a.ID != first {
		t.Errorf("expected busy first agent to still match, got %+v", a)
	}
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()
	p := &fakePersister{}
	r := NewRegistry(zap.NewNop())
	r.SetPersister(p)
	id, _ := r.Register(ctx, "A", "writing")

	if err := r.SetStatus(ctx, id, StatusBusy); err != nil {
		t.Fatalf("set busy: %v", err)
	}
	if err := r.SetStatus(ctx, id, StatusBusy); err != nil {
		t.Fatalf("idempotent set: %v", err)
	}
	if len(p.saved) != 2 {
		t.Errorf("expected register + one status save, got %d", len(p.saved))
	}
	if err := r.SetStatus(ctx, "nope", StatusIdle); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetStatusPersistFailure(t *testing.T) {
	ctx := context.Background()
	p := &fakePersister{}
	r := NewRegistry(zap.NewNop())
	r.SetPersister(p)
	id, _ := r.Register(ctx, "A", "writing")

	p.err = errors.New("disk full")
	if err := r.SetStatus(ctx, id, StatusBusy); err == nil {
		t.Fatal("expected error")
	}
	a, _ := r.Get(id)
	if a.Status != StatusIdle {
		t.Errorf("status changed despite failed save: %s", a.Status)
	}
}

func TestTryAcquire(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(zap.NewNop())
	id, _ := r.Register(ctx, "A", "writing")

	ok, err := r.TryAcquire(ctx, id)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, _ = r.TryAcquire(ctx, id)
	if ok {
		t.Error("second acquire should fail while busy")
	}
	_ = r.SetStatus(ctx, id, StatusIdle)
	ok, _ = r.TryAcquire(ctx, id)
	if !ok {
		t.Error("acquire after release should succeed")
	}
}

func TestPreloadReusesIDs(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(zap.NewNop())
	r.Preload([]*Agent{{ID: "old-writer", Name: "WriteBot", Specialty: "writing", Status: StatusBusy}})

	id, _ := r.Register(ctx, "WriteBot", "writing")
	if id != "old-writer" {
		t.Errorf("expected preloaded id, got %s", id)
	}
	a, _ := r.Get(id)
	if a.Status != StatusIdle {
		t.Errorf("re-registered agent should start idle, got %s", a.Status)
	}
	other, _ := r.Register(ctx, "WriteBot", "writing")
	if other == id {
		t.Error("second registration must not reuse an id in use")
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(zap.NewNop())
	id, _ := r.Register(ctx, "A", "writing")
	a, _ := r.Get(id)
	a.Status = StatusBusy
	again, _ := r.Get(id)
	if again.Status != StatusIdle {
		t.Error("mutating a snapshot changed the registry")
	}
}
