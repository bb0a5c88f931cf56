package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xkilldash9x/wayfarer/api/schemas"
	"go.uber.org/zap"
)

// ErrRunNotFound is returned when a run id has no row in sim_runs.
var ErrRunNotFound = errors.New("store: run not found")

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Schema creates the tables the store writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS sim_runs (
    id          UUID PRIMARY KEY,
    seed        BIGINT NOT NULL,
    scenario    TEXT NOT NULL,
    frames      INTEGER NOT NULL DEFAULT 0,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ
);
ALTER TABLE sim_runs ADD COLUMN IF NOT EXISTS status TEXT NOT NULL DEFAULT 'running';
CREATE TABLE IF NOT EXISTS agent_frames (
    run_id   UUID NOT NULL REFERENCES sim_runs(id) ON DELETE CASCADE,
    frame    INTEGER NOT NULL,
    agent_id UUID NOT NULL,
    name     TEXT NOT NULL,
    state    TEXT NOT NULL,
    x        DOUBLE PRECISION NOT NULL,
    y        DOUBLE PRECISION NOT NULL,
    z        DOUBLE PRECISION NOT NULL,
    yaw      DOUBLE PRECISION NOT NULL,
    moving   BOOLEAN NOT NULL,
    PRIMARY KEY (run_id, frame, agent_id)
);`

var frameColumns = []string{"run_id", "frame", "agent_id", "name", "state", "x", "y", "z", "yaw", "moving"}

// Store persists simulation runs and their frames to PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Migrate creates the tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// CreateRun records the start of a run.
func (s *Store) CreateRun(ctx context.Context, run schemas.RunSummary) error {
	const sql = `
        INSERT INTO sim_runs (id, seed, scenario, frames, started_at)
        VALUES ($1, $2, $3, $4, $5);
    `
	if _, err := s.pool.Exec(ctx, sql, run.RunID, run.Seed, run.Scenario, run.Frames, run.StartedAt.UTC()); err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.RunID, err)
	}
	return nil
}

// FinishRun stores the final frame count, end time and status of a run. An
// empty status means the run completed.
func (s *Store) FinishRun(ctx context.Context, run schemas.RunSummary) error {
	const sql = `
        UPDATE sim_runs SET frames = $2, finished_at = $3, status = $4
        WHERE id = $1;
    `
	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	status := run.Status
	if status == "" {
		status = schemas.RunCompleted
	}
	tag, err := s.pool.Exec(ctx, sql, run.RunID, run.Frames, finished.UTC(), string(status))
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.RunID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.RunID)
	}
	return nil
}

// SaveFrames copies every agent row of frames into agent_frames in one
// transaction and returns the number of rows written.
func (s *Store) SaveFrames(ctx context.Context, frames []schemas.FrameRecord) (int64, error) {
	rows := frameRows(frames)
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit reports ErrTxClosed; that is expected.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"agent_frames"}, frameColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to copy agent frames: %w", err)
	}
	if int(copied) != len(rows) {
		return 0, fmt.Errorf("mismatch in copied agent frames count: expected %d, got %d", len(rows), copied)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return copied, nil
}

func frameRows(frames []schemas.FrameRecord) [][]interface{} {
	var rows [][]interface{}
	for _, f := range frames {
		for _, a := range f.Agents {
			rows = append(rows, []interface{}{
				f.RunID, f.Frame, a.ID, a.Name, a.State,
				a.Position[0], a.Position[1], a.Position[2],
				a.Yaw, a.Moving,
			})
		}
	}
	return rows
}

// GetRun loads one run.
func (s *Store) GetRun(ctx context.Context, runID string) (schemas.RunSummary, error) {
	runs, err := s.queryRuns(ctx, `
        SELECT id, seed, scenario, frames, started_at,
               COALESCE(finished_at, started_at), finished_at IS NOT NULL, status
        FROM sim_runs
        WHERE id = $1;
    `, runID)
	if err != nil {
		return schemas.RunSummary{}, err
	}
	if len(runs) == 0 {
		return schemas.RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return runs[0], nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]schemas.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryRuns(ctx, `
        SELECT id, seed, scenario, frames, started_at,
               COALESCE(finished_at, started_at), finished_at IS NOT NULL, status
        FROM sim_runs
        ORDER BY started_at DESC
        LIMIT $1;
    `, limit)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...interface{}) ([]schemas.RunSummary, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []schemas.RunSummary
	for rows.Next() {
		var r schemas.RunSummary
		var finished time.Time
		var done bool
		var status string
		if err := rows.Scan(&r.RunID, &r.Seed, &r.Scenario, &r.Frames, &r.StartedAt, &finished, &done, &status); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Status = schemas.RunStatus(status)
		if done {
			r.FinishedAt = finished
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}
