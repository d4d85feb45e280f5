package primary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"shipclass/internal/models"
	"shipclass/internal/store"
)

// --- Job Store Implementation ---

// RecordJobEnqueue inserts a record into the background_jobs table.
func (s *StoreImpl) RecordJobEnqueue(ctx context.Context, params store.JobRecordParams) error {
	query := `
		INSERT INTO background_jobs (job_id, task_type, payload, queue, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id) DO NOTHING -- Avoid errors if the same job is somehow recorded twice
		RETURNING id`

	now := time.Now().UTC()
	var insertedID int64

	payloadJSON := json.RawMessage("{}")
	if len(params.Payload) > 0 {
		payloadJSON = json.RawMessage(params.Payload)
	}

	err := s.db.QueryRow(ctx, query,
		params.JobID,
		params.TaskType,
		payloadJSON,
		params.Queue,
		params.Status,
		now,
		now,
	).Scan(&insertedID)

	if err != nil {
		// ON CONFLICT DO NOTHING returns no row; the job was already recorded.
		if errors.Is(err, pgx.ErrNoRows) {
			log.Debugf("Job %s already recorded, skipping insertion.", params.JobID)
			return nil
		}
		return fmt.Errorf("failed to record job enqueue event for JobID %s: %w", params.JobID, err)
	}

	log.Debugf("Recorded job enqueue event for JobID %s with DB ID %d", params.JobID, insertedID)
	return nil
}

// UpdateJobStatus updates the status of a job given its Asynq Task UUID.
func (s *StoreImpl) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string) error {
	query := `UPDATE background_jobs SET status = $1, updated_at = $2 WHERE job_id = $3`
	cmdTag, err := s.db.Exec(ctx, query, status, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status for job %s: %w", jobID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not found to update status: %w", jobID, store.ErrNotFound)
	}
	return nil
}

// ListJobs retrieves background jobs, newest first.
func (s *StoreImpl) ListJobs(ctx context.Context, limit, offset int) ([]*models.BackgroundJob, error) {
	query := `
		SELECT id, job_id, task_type, payload, queue, status, created_at, updated_at
		FROM background_jobs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query background jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[models.BackgroundJob])
	if err != nil {
		return nil, fmt.Errorf("failed to scan background jobs: %w", err)
	}
	return jobs, nil
}
