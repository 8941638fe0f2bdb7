package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nidhogg/honeycomb/internal/agent"
	"github.com/nidhogg/honeycomb/internal/contextdb"
	"github.com/nidhogg/honeycomb/internal/task"
	"go.uber.org/zap"
)

// PostgresStore wraps a PostgreSQL connection pool.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// OpenPostgres creates a store with a pgx connection pool.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("PostgreSQL connected")
	return &PostgresStore{db: pool, logger: logger}, nil
}

// Migrate reads and executes all .up.sql files from the migrations directory.
func (s *PostgresStore) Migrate(ctx context.Context, migrationsDir string) error {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(migrationsDir, f))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		s.logger.Info("Migration applied", zap.String("file", f))
	}
	return nil
}

// Close shuts down the connection pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

const pgTaskColumns = `id, description, type, params, status, COALESCE(agent_id, ''), result,
	COALESCE(error, ''), created_at, assigned_at, completed_at`

func scanPGTask(row pgx.Row) (*task.Task, error) {
	var (
		t              task.Task
		params, result []byte
	)
	if err := row.Scan(&t.ID, &t.Description, &t.Type, &params, &t.Status,
		&t.AgentID, &result, &t.Error, &t.CreatedAt, &t.AssignedAt, &t.CompletedAt); err != nil {
		return nil, err
	}
	var err error
	if t.Params, err = decodeParams(params); err != nil {
		return nil, err
	}
	if t.Result, err = decodeResult(result); err != nil {
		return nil, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.AssignedAt = utcPtr(t.AssignedAt)
	t.CompletedAt = utcPtr(t.CompletedAt)
	return &t, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (s *PostgresStore) InsertTask(ctx context.Context, t *task.Task) error {
	params, err := encodeParams(t.Params)
	if err != nil {
		return err
	}
	result, err := encodeResult(t.Result)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO tasks (id, description, type, params, status, agent_id, result, error,
			created_at, assigned_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''), $9, $10, $11)`,
		t.ID, t.Description, t.Type, params, string(t.Status),
		t.AgentID, result, t.Error, t.CreatedAt, t.AssignedAt, t.CompletedAt,
	)
	if err != nil {
		return persistErr("insert task "+t.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (*task.Task, error) {
	t, err := scanPGTask(s.db.QueryRow(ctx,
		`SELECT `+pgTaskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get task %s: %w", id, task.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, status task.Status) ([]*task.Task, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+pgTaskColumns+` FROM tasks
		WHERE $1 = '' OR status = $1
		ORDER BY seq`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := []*task.Task{}
	for rows.Next() {
		t, err := scanPGTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateTask(ctx context.Context, id string, fn func(*task.Task) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return persistErr("begin", err)
	}
	defer tx.Rollback(ctx)

	t, err := scanPGTask(tx.QueryRow(ctx,
		`SELECT `+pgTaskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update task %s: %w", id, task.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	if err := fn(t); err != nil {
		return err
	}
	result, err := encodeResult(t.Result)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE tasks SET status = $2, agent_id = NULLIF($3, ''), result = $4,
			error = NULLIF($5, ''), assigned_at = $6, completed_at = $7
		WHERE id = $1`,
		id, string(t.Status), t.AgentID, result, t.Error, t.AssignedAt, t.CompletedAt,
	); err != nil {
		return persistErr("update task "+id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return persistErr("commit task "+id, err)
	}
	return nil
}

func (s *PostgresStore) AppendContext(ctx context.Context, e *contextdb.Entry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO context_entries (id, content, type, task_id, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		e.ID, e.Content, e.Type, e.TaskID, e.CreatedAt,
	)
	if err != nil {
		return persistErr("append context", err)
	}
	return nil
}

func (s *PostgresStore) LatestContext(ctx context.Context, limit int) ([]contextdb.Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, content, type, COALESCE(task_id, ''), created_at
		FROM context_entries
		ORDER BY created_at DESC, seq DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("latest context: %w", err)
	}
	defer rows.Close()

	out := []contextdb.Entry{}
	for rows.Next() {
		var e contextdb.Entry
		if err := rows.Scan(&e.ID, &e.Content, &e.Type, &e.TaskID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan context: %w", err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveAgent upserts an agent into the database.
func (s *PostgresStore) SaveAgent(ctx context.Context, a *agent.Agent) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO agents (id, name, specialty, status, registered_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			specialty = EXCLUDED.specialty,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		a.ID, a.Name, a.Specialty, string(a.Status), a.RegisteredAt, a.UpdatedAt,
	)
	if err != nil {
		return persistErr("save agent "+a.ID, err)
	}
	return nil
}

// ListAgents returns agents in registration order.
func (s *PostgresStore) ListAgents(ctx context.Context) ([]*agent.Agent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, specialty, status, registered_at, updated_at
		FROM agents ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []*agent.Agent
	for rows.Next() {
		var a agent.Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Specialty, &a.Status, &a.RegisteredAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, &a)
	}
	return agents, rows.Err()
}
