package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nidhogg/honeycomb/internal/agent"
	"github.com/nidhogg/honeycomb/internal/contextdb"
	"github.com/nidhogg/honeycomb/internal/task"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps state in an embedded SQLite database. A single
// connection serialises all access.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens (or creates) a SQLite database at path and creates its tables.
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteStore, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("SQLite store opened", zap.String("path", path))
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS tasks (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    id           TEXT NOT NULL UNIQUE,
    description  TEXT NOT NULL,
    type         TEXT NOT NULL,
    params       TEXT NOT NULL DEFAULT '{}',
    status       TEXT NOT NULL,
    agent_id     TEXT,
    result       TEXT,
    error        TEXT,
    created_at   INTEGER NOT NULL,
    assigned_at  INTEGER,
    completed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status, seq);

CREATE TABLE IF NOT EXISTS context_entries (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT NOT NULL UNIQUE,
    content    TEXT NOT NULL,
    type       TEXT NOT NULL,
    task_id    TEXT,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_context_created ON context_entries(created_at DESC, seq DESC);

CREATE TABLE IF NOT EXISTS agents (
    seq           INTEGER PRIMARY KEY AUTOINCREMENT,
    id            TEXT NOT NULL UNIQUE,
    name          TEXT NOT NULL,
    specialty     TEXT NOT NULL,
    status        TEXT NOT NULL,
    registered_at INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL
);`
	_, err := s.db.Exec(schema)
	return err
}

const sqliteTaskColumns = `id, description, type, params, status, agent_id, result, error,
	created_at, assigned_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTask(row rowScanner) (*task.Task, error) {
	var (
		t                       task.Task
		params                  string
		agentID, result, errMsg sql.NullString
		createdAt               int64
		assignedAt, completedAt sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.Description, &t.Type, &params, &t.Status,
		&agentID, &result, &errMsg, &createdAt, &assignedAt, &completedAt); err != nil {
		return nil, err
	}
	var err error
	if t.Params, err = decodeParams([]byte(params)); err != nil {
		return nil, err
	}
	if result.Valid {
		if t.Result, err = decodeResult([]byte(result.String)); err != nil {
			return nil, err
		}
	}
	t.AgentID = agentID.String
	t.Error = errMsg.String
	t.CreatedAt = fromUnixNano(createdAt)
	t.AssignedAt = fromNullUnixNano(assignedAt)
	t.CompletedAt = fromNullUnixNano(completedAt)
	return &t, nil
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func fromNullUnixNano(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromUnixNano(n.Int64)
	return &t
}

func toNullUnixNano(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func nullText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func (s *SQLiteStore) InsertTask(ctx context.Context, t *task.Task) error {
	params, err := encodeParams(t.Params)
	if err != nil {
		return err
	}
	result, err := encodeResult(t.Result)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+sqliteTaskColumns+`)
		VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?, NULLIF(?, ''), ?, ?, ?)`,
		t.ID, t.Description, t.Type, string(params), string(t.Status),
		t.AgentID, nullText(result), t.Error,
		t.CreatedAt.UnixNano(), toNullUnixNano(t.AssignedAt), toNullUnixNano(t.CompletedAt),
	)
	if err != nil {
		return persistErr("insert task "+t.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteTaskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanSQLiteTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get task %s: %w", id, task.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

func (s *SQLiteStore) ListTasks(ctx context.Context, status task.Status) ([]*task.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteTaskColumns+` FROM tasks
		WHERE ? = '' OR status = ?
		ORDER BY seq`, string(status), string(status))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := []*task.Task{}
	for rows.Next() {
		t, err := scanSQLiteTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, id string, fn func(*task.Task) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin", err)
	}
	defer tx.Rollback()

	t, err := scanSQLiteTask(tx.QueryRowContext(ctx,
		`SELECT `+sqliteTaskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
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
	if _, err := tx.ExecContext(ctx, `
		UPDATE tasks SET status = ?, agent_id = NULLIF(?, ''), result = ?, error = NULLIF(?, ''),
			assigned_at = ?, completed_at = ?
		WHERE id = ?`,
		string(t.Status), t.AgentID, nullText(result), t.Error,
		toNullUnixNano(t.AssignedAt), toNullUnixNano(t.CompletedAt), id,
	); err != nil {
		return persistErr("update task "+id, err)
	}
	if err := tx.Commit(); err != nil {
		return persistErr("commit task "+id, err)
	}
	return nil
}

func (s *SQLiteStore) AppendContext(ctx context.Context, e *contextdb.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO context_entries (id, content, type, task_id, created_at)
		VALUES (?, ?, ?, NULLIF(?, ''), ?)`,
		e.ID, e.Content, e.Type, e.TaskID, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return persistErr("append context", err)
	}
	return nil
}

func (s *SQLiteStore) LatestContext(ctx context.Context, limit int) ([]contextdb.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, type, COALESCE(task_id, ''), created_at
		FROM context_entries
		ORDER BY created_at DESC, seq DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("latest context: %w", err)
	}
	defer rows.Close()

	out := []contextdb.Entry{}
	for rows.Next() {
		var e contextdb.Entry
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Content, &e.Type, &e.TaskID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan context: %w", err)
		}
		e.CreatedAt = fromUnixNano(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveAgent(ctx context.Context, a *agent.Agent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, name, specialty, status, registered_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			specialty = excluded.specialty,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		a.ID, a.Name, a.Specialty, string(a.Status),
		a.RegisteredAt.UnixNano(), a.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return persistErr("save agent "+a.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListAgents(ctx context.Context) ([]*agent.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, specialty, status, registered_at, updated_at
		FROM agents ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []*agent.Agent
	for rows.Next() {
		var a agent.Agent
		var registeredAt, updatedAt int64
		if err := rows.Scan(&a.ID, &a.Name, &a.Specialty, &a.Status, &registeredAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		a.RegisteredAt = fromUnixNano(registeredAt)
		a.UpdatedAt = fromUnixNano(updatedAt)
		agents = append(agents, &a)
	}
	return agents, rows.Err()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
