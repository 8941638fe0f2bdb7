package notify

import (
	"context"
	"fmt"
	"time"
)

// EventType categorizes lifecycle events.
type EventType string

const (
	EventTaskCompleted    EventType = "task_completed"
	EventTaskFailed       EventType = "task_failed"
	EventTaskUnassignable EventType = "task_unassignable"
	EventSweepFinished    EventType = "sweep_finished"
)

// Event is one lifecycle notification.
type Event struct {
	Type      EventType `json:"type"`
	TaskID    string    `json:"task_id,omitempty"`
	TaskType  string    `json:"task_type,omitempty"`
	AgentID   string    `json:"agent_id,omitempty"`
	AgentName string    `json:"agent_name,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Text renders the event as a single chat line.
func (e *Event) Text() string {
	switch e.Type {
	case EventTaskCompleted:
		return fmt.Sprintf("✅ %s task %s completed by %s", e.TaskType, e.TaskID, e.AgentName)
	case EventTaskFailed:
		return fmt.Sprintf("❌ %s task %s failed: %s", e.TaskType, e.TaskID, e.Detail)
	case EventTaskUnassignable:
		return fmt.Sprintf("⏸ %s task %s has no agent", e.TaskType, e.TaskID)
	default:
		return fmt.Sprintf("[%s] %s", e.Type, e.Detail)
	}
}

// Notifier delivers events to one destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev *Event) error
}
