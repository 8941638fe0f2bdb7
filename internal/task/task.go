package task

import (
	"errors"
	"fmt"
	"time"
)

// Status represents where a task is in its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	// ErrNotFound is returned when a task ID doesn't exist.
	ErrNotFound = errors.New("task not found")
	// ErrInvalidTransition is returned for a status change outside the lifecycle.
	ErrInvalidTransition = errors.New("invalid task transition")
)

// Task is a unit of work routed to an agent by its Type.
type Task struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Type        string         `json:"type"`
	Params      map[string]any `json:"params"`
	Status      Status         `json:"status"`
	AgentID     string         `json:"agent_id,omitempty"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	AssignedAt  *time.Time     `json:"assigned_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Terminal reports whether the task has reached completed or failed.
func (t *Task) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Clone returns a copy safe to hand out of a store. Params is shared
// because it is never mutated after creation.
func (t *Task) Clone() *Task {
	cp := *t
	if t.AssignedAt != nil {
		at := *t.AssignedAt
		cp.AssignedAt = &at
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}

// Fields carries the values applied together with a status change.
type Fields struct {
	AgentID string
	Result  any
	Error   string
}

// validTransitions defines allowed state transitions.
var validTransitions = map[Status][]Status{
	StatusPending:  {StatusAssigned},
	StatusAssigned: {StatusCompleted, StatusFailed},
}

// Transition validates and returns nil if from→to is a legal transition.
func Transition(from, to Status) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("%w: no transitions from %q", ErrInvalidTransition, from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %q → %q", ErrInvalidTransition, from, to)
}

// Apply moves t to status `to`, stamping timestamps and fields.
// t is left untouched when the transition is rejected.
func Apply(t *Task, to Status, f Fields, now time.Time) error {
	if err := Transition(t.Status, to); err != nil {
		return err
	}
	switch to {
	case StatusAssigned:
		if f.AgentID == "" {
			return fmt.Errorf("%w: assign without agent id", ErrInvalidTransition)
		}
		t.AgentID = f.AgentID
		t.AssignedAt = &now
	case StatusCompleted:
		t.Result = f.Result
		t.Error = ""
		t.CompletedAt = &now
	case StatusFailed:
		msg := f.Error
		if msg == "" {
			msg = "unknown error"
		}
		t.Result = nil
		t.Error = msg
		t.CompletedAt = &now
	}
	t.Status = to
	return nil
}
