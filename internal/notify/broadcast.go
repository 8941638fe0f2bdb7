package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const maxHistory = 200

// Broadcaster fans an event out to every registered notifier and keeps
// a bounded in-memory history.
type Broadcaster struct {
	notifiers []Notifier
	history   []Event
	mu        sync.Mutex
	logger    *zap.Logger
}

// NewBroadcaster creates a broadcaster with no destinations.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{logger: logger}
}

// Add registers a destination.
func (b *Broadcaster) Add(n Notifier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifiers = append(b.notifiers, n)
	b.logger.Info("notifier added", zap.String("name", n.Name()))
}

func (b *Broadcaster) Name() string { return "broadcast" }

// Notify records ev and delivers it to all destinations. Every destination
// is tried; the returned error joins the individual failures.
func (b *Broadcaster) Notify(ctx context.Context, ev *Event) error {
	if ev.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	b.history = append(b.history, *ev)
	if len(b.history) > maxHistory {
		b.history = b.history[len(b.history)-maxHistory:]
	}
	targets := make([]Notifier, len(b.notifiers))
	copy(targets, b.notifiers)
	b.mu.Unlock()

	var errs []error
	for _, n := range targets {
		if err := n.Notify(ctx, ev); err != nil {
			b.logger.Warn("notification failed",
				zap.String("notifier", n.Name()),
				zap.String("event", string(ev.Type)),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// History returns up to limit recent events, oldest first.
func (b *Broadcaster) History(limit int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > len(b.history) {
		limit = len(b.history)
	}
	out := make([]Event, limit)
	copy(out, b.history[len(b.history)-limit:])
	return out
}
