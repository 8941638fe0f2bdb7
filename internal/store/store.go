package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/nidhogg/honeycomb/internal/agent"
	"github.com/nidhogg/honeycomb/internal/contextdb"
	"github.com/nidhogg/honeycomb/internal/task"
	"go.uber.org/zap"
)

// ErrPersistence wraps every failure to durably commit a write.
// The state visible before the failed call is left unchanged.
var ErrPersistence = errors.New("persistence failure")

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// Backend holds tasks, context entries and agents in one place.
type Backend interface {
	task.Repository
	contextdb.Repository
	agent.Persister
	ListAgents(ctx context.Context) ([]*agent.Agent, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver     string // json (default), sqlite, postgres
	Path       string
	DSN        string
	Migrations string
}

// Open returns the backend named by opts.Driver.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Backend, error) {
	switch opts.Driver {
	case "", "json":
		path := opts.Path
		if path == "" {
			path = "context.json"
		}
		return OpenFile(path, logger)
	case "memory":
		return NewMemory(logger), nil
	case "sqlite":
		path := opts.Path
		if path == "" {
			path = "honeycomb.db"
		}
		return OpenSQLite(path, logger)
	case "postgres":
		pg, err := OpenPostgres(ctx, opts.DSN, logger)
		if err != nil {
			return nil, err
		}
		if opts.Migrations != "" {
			if err := pg.Migrate(ctx, opts.Migrations); err != nil {
				pg.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
