// Package coordinator matches pending tasks to agents and runs them one
// at a time.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nidhogg/honeycomb/internal/agent"
	"github.com/nidhogg/honeycomb/internal/notify"
	"github.com/nidhogg/honeycomb/internal/task"
	"github.com/nidhogg/honeycomb/internal/worker"
	"go.uber.org/zap"
)

// SummaryType is the specialty that handles context summaries.
const SummaryType = "context_summary"

// Coordinator drives tasks through their lifecycle. Sweeps never overlap.
type Coordinator struct {
	tasks       *task.Queue
	agents      *agent.Registry
	works       *worker.Registry
	cx          worker.ContextIO
	notifier    notify.Notifier
	taskTimeout time.Duration
	sweepMu     sync.Mutex
	logger      *zap.Logger
}

// New creates a coordinator over the given stores and registries.
func New(tasks *task.Queue, agents *agent.Registry, works *worker.Registry, cx worker.ContextIO, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		tasks:  tasks,
		agents: agents,
		works:  works,
		cx:     cx,
		logger: logger,
	}
}

// SetNotifier sets where lifecycle events are published.
func (c *Coordinator) SetNotifier(n notify.Notifier) { c.notifier = n }

// SetTaskTimeout bounds each work function call. Zero means no deadline.
func (c *Coordinator) SetTaskTimeout(d time.Duration) { c.taskTimeout = d }

// ProcessPending runs every pending task once, in creation order.
// Tasks with no matching agent stay pending. Work function errors are
// recorded on the task; store errors abort the sweep.
func (c *Coordinator) ProcessPending(ctx context.Context) (Report, error) {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()

	report := Report{StartedAt: time.Now().UTC()}
	pending, err := c.tasks.ListByStatus(ctx, task.StatusPending)
	if err != nil {
		return report, fmt.Errorf("list pending: %w", err)
	}

	for _, t := range pending {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = time.Now().UTC()
			return report, err
		}
		outcome, err := c.process(ctx, t)
		if err != nil {
			report.FinishedAt = time.Now().UTC()
			return report, err
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	report.FinishedAt = time.Now().UTC()

	if len(report.Outcomes) > 0 {
		c.logger.Info("sweep finished", zap.String("summary", report.Summary()))
		c.publish(ctx, &notify.Event{Type: notify.EventSweepFinished, Detail: report.Summary()})
	}
	return report, nil
}

// RunTask processes one pending task immediately.
func (c *Coordinator) RunTask(ctx context.Context, id string) (Outcome, error) {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()
	return c.runLocked(ctx, id)
}

// runLocked must be called with sweepMu held.
func (c *Coordinator) runLocked(ctx context.Context, id string) (Outcome, error) {
	t, err := c.tasks.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if t.Status != task.StatusPending {
		return Outcome{}, fmt.Errorf("run task %s in status %s: %w", id, t.Status, task.ErrInvalidTransition)
	}
	return c.process(ctx, t)
}

// Summarize submits a context summary task over the latest limit entries
// and runs it right away.
func (c *Coordinator) Summarize(ctx context.Context, limit int) (*task.Task, Outcome, error) {
	if limit <= 0 {
		limit = worker.DefaultSummaryLimit
	}
	// Held across Create so a concurrent sweep cannot pick the task up first.
	c.sweepMu.Lock()
	id, err := c.tasks.Create(ctx, "Generate daily summary", SummaryType, map[string]any{"limit": limit})
	if err != nil {
		c.sweepMu.Unlock()
		return nil, Outcome{}, err
	}
	outcome, err := c.runLocked(ctx, id)
	c.sweepMu.Unlock()
	if err != nil {
		return nil, outcome, err
	}
	t, err := c.tasks.Get(ctx, id)
	if err != nil {
		return nil, outcome, err
	}
	return t, outcome, nil
}

func (c *Coordinator) process(ctx context.Context, t *task.Task) (Outcome, error) {
	outcome := Outcome{TaskID: t.ID, TaskType: t.Type}

	a, ok := c.agents.FindFor(t)
	if !ok {
		outcome.Kind = OutcomeUnassignable
		c.logger.Info("no agent for task",
			zap.String("task", t.ID),
			zap.String("type", t.Type))
		c.publish(ctx, c.event(notify.EventTaskUnassignable, outcome))
		return outcome, nil
	}
	outcome.AgentID = a.ID
	outcome.AgentName = a.Name

	if err := c.tasks.Assign(ctx, t.ID, a.ID); err != nil {
		return outcome, err
	}
	if err := c.agents.SetStatus(ctx, a.ID, agent.StatusBusy); err != nil {
		// An assigned task cannot return to pending; close it out instead.
		outcome.Kind = OutcomeFailed
		outcome.Reason = "mark agent busy: " + err.Error()
		if ferr := c.tasks.Fail(context.WithoutCancel(ctx), t.ID, outcome.Reason); ferr != nil {
			c.logger.Error("fail task", zap.String("task", t.ID), zap.Error(ferr))
		}
		return outcome, err
	}

	c.logger.Info("executing task",
		zap.String("task", t.ID),
		zap.String("agent", a.Name))
	result, workErr := c.execute(ctx, t)

	// Bookkeeping must land even when ctx was cancelled during the work.
	bg := context.WithoutCancel(ctx)
	var err error
	if workErr != nil {
		outcome.Kind = OutcomeFailed
		outcome.Reason = workErr.Error()
		err = c.tasks.Fail(bg, t.ID, outcome.Reason)
		c.logger.Warn("task failed",
			zap.String("task", t.ID),
			zap.String("agent", a.Name),
			zap.Error(workErr))
	} else {
		outcome.Kind = OutcomeCompleted
		err = c.tasks.Complete(bg, t.ID, result)
		c.logger.Info("task completed",
			zap.String("task", t.ID),
			zap.String("agent", a.Name))
	}
	if serr := c.agents.SetStatus(bg, a.ID, agent.StatusIdle); serr != nil {
		c.logger.Error("release agent", zap.String("agent", a.ID), zap.Error(serr))
		if err == nil {
			err = serr
		}
	}
	if err != nil {
		return outcome, err
	}

	kind := notify.EventTaskCompleted
	if outcome.Kind == OutcomeFailed {
		kind = notify.EventTaskFailed
	}
	c.publish(bg, c.event(kind, outcome))
	return outcome, nil
}

// execute runs the work function for t, converting a panic into an error.
func (c *Coordinator) execute(ctx context.Context, t *task.Task) (result any, err error) {
	wf, ok := c.works.Get(t.Type)
	if !ok {
		return nil, fmt.Errorf("no work function for specialty %q", t.Type)
	}
	if c.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.taskTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("work function panicked: %v", r)
		}
	}()
	return wf.Execute(ctx, t, c.cx)
}

func (c *Coordinator) event(kind notify.EventType, o Outcome) *notify.Event {
	return &notify.Event{
		Type:      kind,
		TaskID:    o.TaskID,
		TaskType:  o.TaskType,
		AgentID:   o.AgentID,
		AgentName: o.AgentName,
		Detail:    o.Reason,
		Timestamp: time.Now().UTC(),
	}
}

func (c *Coordinator) publish(ctx context.Context, ev *notify.Event) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ctx, ev); err != nil {
		c.logger.Debug("publish event", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}
