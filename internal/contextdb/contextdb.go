// Package contextdb is the append-only log of context entries that agents
// read from and write to while working.
package contextdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TypeGeneral is used when an entry is appended without a type.
const TypeGeneral = "general"

// Entry is one piece of shared context.
type Entry struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	TaskID    string    `json:"task_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository is the persistence contract a backend provides for entries.
// LatestContext returns newest first; entries with equal timestamps are
// ordered by append order, later first.
type Repository interface {
	AppendContext(ctx context.Context, e *Entry) error
	LatestContext(ctx context.Context, limit int) ([]Entry, error)
}

// Store assigns ids and timestamps and delegates storage to a Repository.
type Store struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewStore creates a context store.
func NewStore(repo Repository, logger *zap.Logger) *Store {
	return &Store{repo: repo, logger: logger, now: time.Now}
}

// Append stores e and returns its new id. The entry is durable on return.
func (s *Store) Append(ctx context.Context, e Entry) (string, error) {
	e.ID = uuid.New().String()
	e.CreatedAt = s.stamp()
	if e.Type == "" {
		e.Type = TypeGeneral
	}
	if err := s.repo.AppendContext(ctx, &e); err != nil {
		return "", fmt.Errorf("append context: %w", err)
	}
	s.logger.Debug("context appended",
		zap.String("id", e.ID),
		zap.String("type", e.Type))
	return e.ID, nil
}

// stamp returns the current time, nudged forward when the wall clock
// has not advanced past the previous append.
func (s *Store) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// Latest returns up to limit entries, newest first.
func (s *Store) Latest(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return []Entry{}, nil
	}
	entries, err := s.repo.LatestContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("latest context: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}
