// Package worker holds the work functions agents run, keyed by specialty.
package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nidhogg/honeycomb/internal/contextdb"
	"github.com/nidhogg/honeycomb/internal/provider"
	"github.com/nidhogg/honeycomb/internal/task"
)

// ErrNoCredential is returned when the provider a work function needs has no API key.
var ErrNoCredential = provider.ErrNoCredential

// ContextIO is the slice of the context store a work function may use.
type ContextIO interface {
	Latest(ctx context.Context, limit int) ([]contextdb.Entry, error)
	Append(ctx context.Context, e contextdb.Entry) (string, error)
}

// WorkFunction performs the external action for one specialty.
// The returned result is stored on the task as-is.
type WorkFunction interface {
	Specialty() string
	Execute(ctx context.Context, t *task.Task, cx ContextIO) (any, error)
}

// Chatter routes a chat request to an LLM provider.
type Chatter interface {
	Route(ctx context.Context, route string, req *provider.ChatRequest) (*provider.ChatResponse, error)
}

// Registry maps specialties to work functions.
type Registry struct {
	funcs map[string]WorkFunction
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]WorkFunction)}
}

// Register adds a work function. A specialty can be registered once.
func (r *Registry) Register(wf WorkFunction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := wf.Specialty()
	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("work function %q already registered", name)
	}
	r.funcs[name] = wf
	return nil
}

// Get returns the work function for a specialty.
func (r *Registry) Get(specialty string) (WorkFunction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wf, ok := r.funcs[specialty]
	return wf, ok
}

// Specialties returns registered specialties sorted by name.
func (r *Registry) Specialties() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
