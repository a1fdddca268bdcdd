// Package store archives agent runs in PostgreSQL. It is write only: the
// agent never reads its own history back from the database.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/json-iterator/go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/agent"
)

// ErrRunNotFound is returned when finishing a run that was never started.
var ErrRunNotFound = errors.New("run not found")

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS webpilot_runs (
        id          UUID PRIMARY KEY,
        goal        TEXT NOT NULL,
        start_url   TEXT NOT NULL,
        status      TEXT NOT NULL,
        reason      TEXT NOT NULL DEFAULT '',
        steps       INTEGER NOT NULL DEFAULT 0,
        started_at  TIMESTAMPTZ NOT NULL,
        finished_at TIMESTAMPTZ
    )`,
	`CREATE TABLE IF NOT EXISTS webpilot_tasks (
        id          UUID PRIMARY KEY,
        run_id      UUID NOT NULL REFERENCES webpilot_runs (id) ON DELETE CASCADE,
        step        INTEGER NOT NULL,
        goal        TEXT NOT NULL,
        actions     JSONB NOT NULL,
        status      TEXT NOT NULL,
        reason      TEXT NOT NULL DEFAULT '',
        created_at  TIMESTAMPTZ NOT NULL,
        resolved_at TIMESTAMPTZ
    )`,
	`CREATE INDEX IF NOT EXISTS webpilot_tasks_run_step_idx ON webpilot_tasks (run_id, step)`,
}

const (
	sqlInsertRun = `
        INSERT INTO webpilot_runs (id, goal, start_url, status, started_at)
        VALUES ($1, $2, $3, $4, $5);
    `
	sqlInsertTask = `
        INSERT INTO webpilot_tasks (id, run_id, step, goal, actions, status, reason, created_at, resolved_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (id) DO NOTHING;
    `
	sqlFinishRun = `
        UPDATE webpilot_runs SET status = $2, reason = $3, steps = $4, finished_at = $5
        WHERE id = $1;
    `
)

const statusRunning = "running"

// Store is a PostgreSQL implementation of agent.RunRecorder.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ agent.RunRecorder = (*Store)(nil)

// Connect opens a pool for databaseURL and returns a ready store.
func Connect(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool, log: logger.Named("store")}, nil
}

// EnsureSchema creates the archive tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) StartRun(ctx context.Context, run agent.RunInfo) error {
	_, err := s.pool.Exec(ctx, sqlInsertRun, run.ID, run.Goal, run.StartURL, statusRunning, run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Store) RecordTask(ctx context.Context, runID string, step int, task agent.TaskRecord) error {
	actions, err := json.Marshal(task.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions of task %s: %w", task.ID, err)
	}

	var resolvedAt *time.Time
	if task.ResolvedAt != nil {
		utc := task.ResolvedAt.UTC()
		resolvedAt = &utc
	}

	_, err = s.pool.Exec(ctx, sqlInsertTask,
		task.ID, runID, step, task.Goal, string(actions),
		string(task.Status), task.Reason, task.CreatedAt.UTC(), resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task %s: %w", task.ID, err)
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, runID string, result agent.RunResult) error {
	tag, err := s.pool.Exec(ctx, sqlFinishRun, runID, string(result.Status), result.Reason, result.Steps, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finishing run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
