package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/honeycomb/internal/task"
	"go.uber.org/zap"
)

// ErrNotFound is returned when an agent ID doesn't exist.
var ErrNotFound = errors.New("agent not found")

// Persister writes agent records to durable storage.
type Persister interface {
	SaveAgent(ctx context.Context, a *Agent) error
}

// Registry holds the agents of this process in registration order.
// Matching is first-registered-wins on exact specialty; an agent's
// busy state is not considered.
type Registry struct {
	order     []*Agent
	byID      map[string]*Agent
	known     map[string]string // name+specialty → id from a previous run
	persister Persister
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		byID:   make(map[string]*Agent),
		known:  make(map[string]string),
		logger: logger,
	}
}

// SetPersister sets the backend used to save agents on every change.
func (r *Registry) SetPersister(p Persister) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persister = p
}

// Preload remembers agents saved by an earlier run so that re-registering
// the same name and specialty keeps the old id.
func (r *Registry) Preload(agents []*Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range agents {
		r.known[knownKey(a.Name, a.Specialty)] = a.ID
	}
}

func knownKey(name, specialty string) string {
	return name + "\x00" + specialty
}

// Register adds an idle agent and returns its id.
func (r *Registry) Register(ctx context.Context, name, specialty string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.known[knownKey(name, specialty)]
	if !ok || r.byID[id] != nil {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	a := &Agent{
		ID:           id,
		Name:         name,
		Specialty:    specialty,
		Status:       StatusIdle,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	if err := r.save(ctx, a); err != nil {
		return "", err
	}
	r.order = append(r.order, a)
	r.byID[a.ID] = a
	r.logger.Info("registered agent",
		zap.String("id", a.ID),
		zap.String("name", a.Name),
		zap.String("specialty", a.Specialty))
	return a.ID, nil
}

// Get returns a snapshot of an agent by ID.
func (r *Registry) Get(id string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	cp := *a
	return &cp, true
}

// List returns snapshots of all agents in registration order.
func (r *Registry) List() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Agent, 0, len(r.order))
	for _, a := range r.order {
		cp := *a
		result = append(result, &cp)
	}
	return result
}

// FindFor returns the first registered agent whose specialty equals the task type.
func (r *Registry) FindFor(t *task.Task) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.order {
		if a.Specialty == t.Type {
			cp := *a
			return &cp, true
		}
	}
	return nil, false
}

// SetStatus updates an agent's status. Setting the current status again is a no-op.
func (r *Registry) SetStatus(ctx context.Context, id string, s Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("set status %s: %w", id, ErrNotFound)
	}
	if a.Status == s {
		return nil
	}
	return r.setStatus(ctx, a, s)
}

// TryAcquire flips an idle agent to busy and reports whether it did.
func (r *Registry) TryAcquire(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return false, fmt.Errorf("acquire %s: %w", id, ErrNotFound)
	}
	if a.Status != StatusIdle {
		return false, nil
	}
	if err := r.setStatus(ctx, a, StatusBusy); err != nil {
		return false, err
	}
	return true, nil
}

// setStatus must be called with r.mu held. The in-memory record changes
// only after the persister accepted it.
func (r *Registry) setStatus(ctx context.Context, a *Agent, s Status) error {
	next := *a
	next.Status = s
	next.UpdatedAt = time.Now().UTC()
	if err := r.save(ctx, &next); err != nil {
		return err
	}
	*a = next
	return nil
}

func (r *Registry) save(ctx context.Context, a *Agent) error {
	if r.persister == nil {
		return nil
	}
	if err := r.persister.SaveAgent(ctx, a); err != nil {
		return fmt.Errorf("save agent %s: %w", a.ID, err)
	}
	return nil
}
