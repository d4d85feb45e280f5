package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"shipclass/internal/models"
	"shipclass/internal/tasks"
)

// --- Job Client ---

type JobClient interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	EnqueueClassifyFile(ctx context.Context, payload tasks.ClassifyFilePayload) (*asynq.TaskInfo, error)
	Close() error
}

// --- Run Store ---

type RunStore interface {
	CreateRun(ctx context.Context, run *models.Run) error
	FinishRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error)

	Ping(ctx context.Context) error
}

// --- Job Store ---

// JobRecordParams holds parameters for recording a job event.
type JobRecordParams struct {
	JobID    uuid.UUID
	TaskType string
	Payload  []byte
	Queue    string
	Status   string
}

type JobStore interface {
	RecordJobEnqueue(ctx context.Context, params JobRecordParams) error
	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string) error
	ListJobs(ctx context.Context, limit, offset int) ([]*models.BackgroundJob, error)
}

// --- Cost Tracking Store ---

type CostTrackingStore interface {
	RecordUsage(ctx context.Context, log *models.AIUsageLog) error
	ListUsage(ctx context.Context, limit, offset int) ([]*models.AIUsageLog, error)
	GetUsageSummary(ctx context.Context) (totalCost float64, totalInputTokens, totalOutputTokens int64, err error)
}

// Store is the full ledger backing a run: runs, provider usage and background jobs.
type Store interface {
	RunStore
	JobStore
	CostTrackingStore
	Close() error
}
