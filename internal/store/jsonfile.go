package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"

	"github.com/nidhogg/honeycomb/internal/agent"
	"github.com/nidhogg/honeycomb/internal/contextdb"
	"github.com/nidhogg/honeycomb/internal/task"
	"go.uber.org/zap"
)

type document struct {
	Tasks   []*task.Task       `json:"tasks"`
	Context []*contextdb.Entry `json:"context"`
	Agents  []*agent.Agent     `json:"agents"`
}

func (d *document) normalize() {
	if d.Tasks == nil {
		d.Tasks = []*task.Task{}
	}
	if d.Context == nil {
		d.Context = []*contextdb.Entry{}
	}
	if d.Agents == nil {
		d.Agents = []*agent.Agent{}
	}
}

// FileStore keeps the whole document in memory and rewrites the file
// atomically on every mutation. A mutation becomes visible only after
// the rewrite succeeded. With an empty path nothing is written to disk.
type FileStore struct {
	path   string
	doc    document
	mu     sync.RWMutex
	logger *zap.Logger
}

// OpenFile loads the document at path, creating it when missing.
func OpenFile(path string, logger *zap.Logger) (*FileStore, error) {
	s := &FileStore{path: path, logger: logger}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.doc.normalize()
		if err := s.commit(s.doc); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		if len(bytes.TrimSpace(data)) > 0 {
			if err := json.Unmarshal(data, &s.doc); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		}
		s.doc.normalize()
	}
	logger.Info("JSON store opened",
		zap.String("path", path),
		zap.Int("tasks", len(s.doc.Tasks)),
		zap.Int("context", len(s.doc.Context)))
	return s, nil
}

// NewMemory returns a FileStore that never touches disk.
func NewMemory(logger *zap.Logger) *FileStore {
	s := &FileStore{logger: logger}
	s.doc.normalize()
	return s
}

// commit must be called with s.mu held for writing.
func (s *FileStore) commit(next document) error {
	if s.path != "" {
		data, err := json.MarshalIndent(next, "", "  ")
		if err != nil {
			return persistErr("encode document", err)
		}
		if err := writeFileAtomic(s.path, data, 0o644); err != nil {
			return persistErr("write "+s.path, err)
		}
	}
	s.doc = next
	return nil
}

func (s *FileStore) InsertTask(ctx context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.doc
	next.Tasks = append(slices.Clone(s.doc.Tasks), t.Clone())
	return s.commit(next)
}

func (s *FileStore) GetTask(ctx context.Context, id string) (*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.doc.Tasks {
		if t.ID == id {
			return t.Clone(), nil
		}
	}
	return nil, fmt.Errorf("get task %s: %w", id, task.ErrNotFound)
}

func (s *FileStore) ListTasks(ctx context.Context, status task.Status) ([]*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*task.Task, 0, len(s.doc.Tasks))
	for _, t := range s.doc.Tasks {
		if status == "" || t.Status == status {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (s *FileStore) UpdateTask(ctx context.Context, id string, fn func(*task.Task) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.doc.Tasks, func(t *task.Task) bool { return t.ID == id })
	if idx < 0 {
		return fmt.Errorf("update task %s: %w", id, task.ErrNotFound)
	}
	updated := s.doc.Tasks[idx].Clone()
	if err := fn(updated); err != nil {
		return err
	}
	next := s.doc
	next.Tasks = slices.Clone(s.doc.Tasks)
	next.Tasks[idx] = updated
	return s.commit(next)
}

func (s *FileStore) AppendContext(ctx context.Context, e *contextdb.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	next := s.doc
	next.Context = append(slices.Clone(s.doc.Context), &cp)
	return s.commit(next)
}

func (s *FileStore) LatestContext(ctx context.Context, limit int) ([]contextdb.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Reverse append order first so the stable sort keeps later appends
	// ahead of earlier ones with the same timestamp.
	entries := make([]contextdb.Entry, 0, len(s.doc.Context))
	for i := len(s.doc.Context) - 1; i >= 0; i-- {
		entries = append(entries, *s.doc.Context[i])
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *FileStore) SaveAgent(ctx context.Context, a *agent.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	next := s.doc
	next.Agents = slices.Clone(s.doc.Agents)
	if idx := slices.IndexFunc(next.Agents, func(x *agent.Agent) bool { return x.ID == a.ID }); idx >= 0 {
		next.Agents[idx] = &cp
	} else {
		next.Agents = append(next.Agents, &cp)
	}
	return s.commit(next)
}

func (s *FileStore) ListAgents(ctx context.Context) ([]*agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*agent.Agent, 0, len(s.doc.Agents))
	for _, a := range s.doc.Agents {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// Close is a no-op; every mutation is already on disk.
func (s *FileStore) Close() error { return nil }
