package coordinator

import (
	"fmt"
	"strings"
	"time"
)

// OutcomeKind is what happened to one task during a sweep.
type OutcomeKind string

const (
	OutcomeCompleted    OutcomeKind = "completed"
	OutcomeFailed       OutcomeKind = "failed"
	OutcomeUnassignable OutcomeKind = "unassignable"
)

// Outcome records the handling of one task.
type Outcome struct {
	TaskID    string      `json:"task_id"`
	TaskType  string      `json:"task_type"`
	Kind      OutcomeKind `json:"kind"`
	AgentID   string      `json:"agent_id,omitempty"`
	AgentName string      `json:"agent_name,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeCompleted:
		return "completed by " + o.AgentName
	case OutcomeFailed:
		return "failed: " + o.Reason
	default:
		return string(o.Kind)
	}
}

// Report lists the outcomes of one sweep in processing order.
type Report struct {
	Outcomes   []Outcome `json:"outcomes"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Count returns how many outcomes are of the given kind.
func (r Report) Count(kind OutcomeKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

func (r Report) String() string {
	if len(r.Outcomes) == 0 {
		return "No pending tasks."
	}
	var b strings.Builder
	for _, o := range r.Outcomes {
		fmt.Fprintf(&b, "Task %s: %s\n", o.TaskID, o)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Summary is a one-line count of the report.
func (r Report) Summary() string {
	return fmt.Sprintf("%d processed: %d completed, %d failed, %d unassignable",
		len(r.Outcomes), r.Count(OutcomeCompleted), r.Count(OutcomeFailed), r.Count(OutcomeUnassignable))
}
