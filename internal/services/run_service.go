package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"shipclass/internal/models"
	"shipclass/internal/store"
)

const defaultPageSize = 20

// RunService exposes the run ledger and the background job records.
type RunService struct {
	runStore store.RunStore
	jobStore store.JobStore
}

// NewRunService creates a new RunService.
func NewRunService(rs store.RunStore, js store.JobStore) *RunService {
	return &RunService{
		runStore: rs,
		jobStore: js,
	}
}

// ListRuns retrieves classification runs, newest first.
func (s *RunService) ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error) {
	limit, offset = normalizePage(limit, offset)
	runs, err := s.runStore.ListRuns(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs from store: %w", err)
	}
	return runs, nil
}

// GetRun retrieves a single run.
func (s *RunService) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	run, err := s.runStore.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// ListJobs retrieves background classify jobs.
func (s *RunService) ListJobs(ctx context.Context, limit, offset int) ([]*models.BackgroundJob, error) {
	limit, offset = normalizePage(limit, offset)
	jobs, err := s.jobStore.ListJobs(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs from store: %w", err)
	}
	return jobs, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
