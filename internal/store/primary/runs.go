package primary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"shipclass/internal/models"
	"shipclass/internal/store"
)

const runColumns = `id, input_path, output_path, provider, model, status, row_count, error_rows,
		batches, failed_batches, message, started_at, finished_at`

// CreateRun inserts a run. A zero ID or StartedAt is filled in.
func (s *StoreImpl) CreateRun(ctx context.Context, run *models.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := s.db.Exec(ctx, query,
		run.ID, run.InputPath, run.OutputPath, run.Provider, run.Model, run.Status,
		run.Rows, run.ErrorRows, run.Batches, run.FailedBatches, run.Message,
		run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stores the final counters and status of a run.
func (s *StoreImpl) FinishRun(ctx context.Context, run *models.Run) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	query := `
		UPDATE runs SET status = $1, row_count = $2, error_rows = $3, batches = $4,
		       failed_batches = $5, message = $6, output_path = $7, finished_at = $8
		WHERE id = $9`
	cmdTag, err := s.db.Exec(ctx, query,
		run.Status, run.Rows, run.ErrorRows, run.Batches, run.FailedBatches,
		run.Message, run.OutputPath, run.FinishedAt, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not found: %w", run.ID, store.ErrNotFound)
	}
	return nil
}

// GetRun returns a single run by id.
func (s *StoreImpl) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
	run := &models.Run{}
	if err := scanRun(s.db.QueryRow(ctx, query, id), run); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns runs, newest first.
func (s *StoreImpl) ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC LIMIT $1 OFFSET $2`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows[*models.Run](rows, func(row pgx.CollectableRow) (*models.Run, error) {
		var run models.Run
		if err := scanRun(row, &run); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		return &run, nil
	})
}
