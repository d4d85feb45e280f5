package primary

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shipclass/internal/models"
	"shipclass/internal/store"
)

// schema is applied on connect; every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             UUID PRIMARY KEY,
	input_path     TEXT NOT NULL,
	output_path    TEXT NOT NULL,
	provider       TEXT NOT NULL,
	model          TEXT NOT NULL,
	status         TEXT NOT NULL,
	row_count      INTEGER NOT NULL DEFAULT 0,
	error_rows     INTEGER NOT NULL DEFAULT 0,
	batches        INTEGER NOT NULL DEFAULT 0,
	failed_batches INTEGER NOT NULL DEFAULT 0,
	message        TEXT,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs (started_at DESC);

CREATE TABLE IF NOT EXISTS ai_usage_logs (
	id             BIGSERIAL PRIMARY KEY,
	timestamp      TIMESTAMPTZ NOT NULL,
	provider_name  TEXT NOT NULL,
	service_type   TEXT NOT NULL,
	model_name     TEXT NOT NULL,
	input_tokens   INTEGER NOT NULL DEFAULT 0,
	output_tokens  INTEGER NOT NULL DEFAULT 0,
	cost           DOUBLE PRECISION NOT NULL DEFAULT 0,
	related_run_id UUID REFERENCES runs (id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS background_jobs (
	id         BIGSERIAL PRIMARY KEY,
	job_id     UUID NOT NULL UNIQUE,
	task_type  TEXT NOT NULL,
	payload    JSONB NOT NULL DEFAULT '{}',
	queue      TEXT NOT NULL,
	status     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// StoreImpl implements store.Store using PostgreSQL.
type StoreImpl struct {
	db *pgxpool.Pool
}

// NewPrimaryStore creates a new PostgreSQL store and applies the schema.
func NewPrimaryStore(ctx context.Context, dsn string) (*StoreImpl, error) {
	if dsn == "" {
		return nil, errors.New("database DSN cannot be empty")
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database DSN: %w", err)
	}

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	if _, err := dbpool.Exec(ctx, schema); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to apply schema: %w", err)
	}

	return &StoreImpl{db: dbpool}, nil
}

// Ping checks the database connection.
func (s *StoreImpl) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection pool.
func (s *StoreImpl) Close() error {
	s.db.Close()
	return nil
}

// --- Helper Functions ---

// scanRun scans a single row into a models.Run.
// It expects the columns in the order of runColumns.
func scanRun(row pgx.Row, dest *models.Run) error {
	return row.Scan(
		&dest.ID,
		&dest.InputPath,
		&dest.OutputPath,
		&dest.Provider,
		&dest.Model,
		&dest.Status,
		&dest.Rows,
		&dest.ErrorRows,
		&dest.Batches,
		&dest.FailedBatches,
		&dest.Message,
		&dest.StartedAt,
		&dest.FinishedAt,
	)
}

// Ensure StoreImpl satisfies the full store interface
var _ store.Store = (*StoreImpl)(nil)
