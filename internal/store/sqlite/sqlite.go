// Package sqlite is the local-file ledger used when no Postgres DSN is configured.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"shipclass/internal/models"
	"shipclass/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
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
	started_at     DATETIME NOT NULL,
	finished_at    DATETIME
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs (started_at DESC);

CREATE TABLE IF NOT EXISTS ai_usage_logs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp      DATETIME NOT NULL,
	provider_name  TEXT NOT NULL,
	service_type   TEXT NOT NULL,
	model_name     TEXT NOT NULL,
	input_tokens   INTEGER NOT NULL DEFAULT 0,
	output_tokens  INTEGER NOT NULL DEFAULT 0,
	cost           REAL NOT NULL DEFAULT 0,
	related_run_id TEXT
);

CREATE TABLE IF NOT EXISTS background_jobs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id     TEXT NOT NULL UNIQUE,
	task_type  TEXT NOT NULL,
	payload    BLOB NOT NULL,
	queue      TEXT NOT NULL,
	status     TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const runColumns = `id, input_path, output_path, provider, model, status, row_count, error_rows,
		batches, failed_batches, message, started_at, finished_at`

// Store implements store.Store on a SQLite database file.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dsn and applies the schema.
// Use ":memory:" for a throwaway in-memory ledger.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("database DSN cannot be empty")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Runs ---

// CreateRun inserts a run. A zero ID or StartedAt is filled in.
func (s *Store) CreateRun(ctx context.Context, run *models.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		run.ID.String(), run.InputPath, run.OutputPath, run.Provider, run.Model, run.Status,
		run.Rows, run.ErrorRows, run.Batches, run.FailedBatches, run.Message,
		run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stores the final counters and status of a run.
func (s *Store) FinishRun(ctx context.Context, run *models.Run) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	query := `
		UPDATE runs SET status = ?, row_count = ?, error_rows = ?, batches = ?,
		       failed_batches = ?, message = ?, output_path = ?, finished_at = ?
		WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query,
		run.Status, run.Rows, run.ErrorRows, run.Batches, run.FailedBatches,
		run.Message, run.OutputPath, *run.FinishedAt, run.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found: %w", run.ID, store.ErrNotFound)
	}
	return nil
}

// GetRun returns a single run by id.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`
	run := &models.Run{}
	if err := scanRun(s.db.QueryRowContext(ctx, query, id.String()), run); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run := &models.Run{}
		if err := scanRun(rows, run); err != nil {
			return runs, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner, dest *models.Run) error {
	var finished sql.NullTime
	var message sql.NullString
	err := row.Scan(
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
		&message,
		&dest.StartedAt,
		&finished,
	)
	if err != nil {
		return err
	}
	if message.Valid {
		dest.Message = &message.String
	}
	if finished.Valid {
		dest.FinishedAt = &finished.Time
	}
	return nil
}

// --- Cost tracking ---

// RecordUsage inserts a new AI usage log entry.
func (s *Store) RecordUsage(ctx context.Context, usage *models.AIUsageLog) error {
	if usage.Timestamp.IsZero() {
		usage.Timestamp = time.Now().UTC()
	}
	var runID sql.NullString
	if usage.RelatedRunID != nil {
		runID = sql.NullString{String: usage.RelatedRunID.String(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_usage_logs (
			timestamp, provider_name, service_type, model_name,
			input_tokens, output_tokens, cost, related_run_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		usage.Timestamp, usage.ProviderName, usage.ServiceType, usage.ModelName,
		usage.InputTokens, usage.OutputTokens, usage.Cost, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ai_usage_log: %w", err)
	}
	usage.ID, _ = res.LastInsertId()
	return nil
}

// ListUsage returns AI usage logs, newest first.
func (s *Store) ListUsage(ctx context.Context, limit, offset int) ([]*models.AIUsageLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, provider_name, service_type, model_name,
		       input_tokens, output_tokens, cost, related_run_id
		FROM ai_usage_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query ai_usage_logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AIUsageLog
	for rows.Next() {
		var usage models.AIUsageLog
		var runID sql.NullString
		if err := rows.Scan(
			&usage.ID, &usage.Timestamp, &usage.ProviderName, &usage.ServiceType, &usage.ModelName,
			&usage.InputTokens, &usage.OutputTokens, &usage.Cost, &runID,
		); err != nil {
			return logs, fmt.Errorf("failed to scan ai_usage_log: %w", err)
		}
		if runID.Valid {
			if id, err := uuid.Parse(runID.String); err == nil {
				usage.RelatedRunID = &id
			}
		}
		logs = append(logs, &usage)
	}
	return logs, rows.Err()
}

// GetUsageSummary returns the total cost and token usage.
func (s *Store) GetUsageSummary(ctx context.Context) (totalCost float64, totalInputTokens, totalOutputTokens int64, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(cost),0.0),
			COALESCE(SUM(input_tokens),0),
			COALESCE(SUM(output_tokens),0)
		FROM ai_usage_logs`).Scan(&totalCost, &totalInputTokens, &totalOutputTokens)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to summarize ai_usage_logs: %w", err)
	}
	return totalCost, totalInputTokens, totalOutputTokens, nil
}

// --- Jobs ---

// RecordJobEnqueue inserts a record into the background_jobs table.
func (s *Store) RecordJobEnqueue(ctx context.Context, params store.JobRecordParams) error {
	payload := params.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO background_jobs (job_id, task_type, payload, queue, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO NOTHING`,
		params.JobID.String(), params.TaskType, payload, params.Queue, params.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to record job enqueue event for JobID %s: %w", params.JobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Debugf("Job %s already recorded, skipping insertion.", params.JobID)
	}
	return nil
}

// UpdateJobStatus updates the status of a job given its Asynq Task UUID.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE background_jobs SET status = ?, updated_at = ? WHERE job_id = ?`,
		status, time.Now().UTC(), jobID.String())
	if err != nil {
		return fmt.Errorf("failed to update job status for job %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s not found to update status: %w", jobID, store.ErrNotFound)
	}
	return nil
}

// ListJobs retrieves background jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, limit, offset int) ([]*models.BackgroundJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, task_type, payload, queue, status, created_at, updated_at
		FROM background_jobs
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query background jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.BackgroundJob
	for rows.Next() {
		job := &models.BackgroundJob{}
		var payload []byte
		if err := rows.Scan(
			&job.ID, &job.JobID, &job.TaskType, &payload, &job.Queue, &job.Status,
			&job.CreatedAt, &job.UpdatedAt,
		); err != nil {
			return jobs, fmt.Errorf("failed to scan background job row: %w", err)
		}
		job.Payload = payload
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Ensure Store satisfies the full store interface
var _ store.Store = (*Store)(nil)
