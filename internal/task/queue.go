package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Repository is the persistence contract a backend provides for tasks.
// UpdateTask runs fn on a copy of the stored task and commits the copy
// only when fn returns nil; an error from fn is returned unchanged.
type Repository interface {
	InsertTask(ctx context.Context, t *Task) error
	GetTask(ctx context.Context, id string) (*Task, error)
	ListTasks(ctx context.Context, status Status) ([]*Task, error)
	UpdateTask(ctx context.Context, id string, fn func(*Task) error) error
}

// Queue is the task store: creation, lookup and lifecycle transitions.
type Queue struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewQueue creates a Queue over the given repository.
func NewQueue(repo Repository, logger *zap.Logger) *Queue {
	return &Queue{repo: repo, logger: logger, now: time.Now}
}

// Create stores a new pending task and returns its id.
func (q *Queue) Create(ctx context.Context, description, taskType string, params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	t := &Task{
		ID:          uuid.New().String(),
		Description: description,
		Type:        taskType,
		Params:      params,
		Status:      StatusPending,
		CreatedAt:   q.now().UTC(),
	}
	if err := q.repo.InsertTask(ctx, t); err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	q.logger.Info("task created",
		zap.String("task", t.ID),
		zap.String("type", t.Type))
	return t.ID, nil
}

// Get returns a task by id, or ErrNotFound.
func (q *Queue) Get(ctx context.Context, id string) (*Task, error) {
	return q.repo.GetTask(ctx, id)
}

// List returns every task in creation order.
func (q *Queue) List(ctx context.Context) ([]*Task, error) {
	return q.repo.ListTasks(ctx, "")
}

// ListByStatus returns tasks in the given status, in creation order.
func (q *Queue) ListByStatus(ctx context.Context, status Status) ([]*Task, error) {
	return q.repo.ListTasks(ctx, status)
}

// Transition moves a task to `to`, applying f atomically with the status change.
func (q *Queue) Transition(ctx context.Context, id string, to Status, f Fields) error {
	now := q.now().UTC()
	err := q.repo.UpdateTask(ctx, id, func(t *Task) error {
		return Apply(t, to, f, now)
	})
	if err != nil {
		return fmt.Errorf("task %s → %s: %w", id, to, err)
	}
	q.logger.Debug("task transitioned",
		zap.String("task", id),
		zap.String("status", string(to)))
	return nil
}

// Assign binds a pending task to an agent.
func (q *Queue) Assign(ctx context.Context, id, agentID string) error {
	return q.Transition(ctx, id, StatusAssigned, Fields{AgentID: agentID})
}

// Complete records a result on an assigned task.
func (q *Queue) Complete(ctx context.Context, id string, result any) error {
	return q.Transition(ctx, id, StatusCompleted, Fields{Result: result})
}

// Fail records an error on an assigned task.
func (q *Queue) Fail(ctx context.Context, id, reason string) error {
	return q.Transition(ctx, id, StatusFailed, Fields{Error: reason})
}
