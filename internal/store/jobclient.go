package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"shipclass/internal/models"
	"shipclass/internal/tasks"
)

// AsynqJobClient is a concrete JobClient
// Enqueues classify tasks and records them to the JobStore
type AsynqJobClient struct {
	client   *asynq.Client
	jobStore JobStore
}

// NewAsynqJobClient connects to Redis with opt and records every enqueue in js.
func NewAsynqJobClient(opt asynq.RedisClientOpt, js JobStore) (*AsynqJobClient, error) {
	if js == nil {
		return nil, fmt.Errorf("JobStore cannot be nil for AsynqJobClient")
	}
	cli := asynq.NewClient(opt)
	return &AsynqJobClient{client: cli, jobStore: js}, nil
}

func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

// Enqueue enqueues a task under a fresh UUID task id and records the event to the JobStore.
func (jc *AsynqJobClient) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if jc.client == nil {
		return nil, fmt.Errorf("AsynqJobClient internal client is not initialized")
	}

	jobID := uuid.New()
	opts = append(opts, asynq.TaskID(jobID.String()))

	log.Debugf("Enqueuing task type '%s' as %s", task.Type(), jobID)
	info, err := jc.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		log.Errorf("Failed to enqueue task type '%s': %v", task.Type(), err)
		return nil, err
	}
	log.Debugf("Successfully enqueued task type '%s' on queue %s", task.Type(), info.Queue)

	recordParams := JobRecordParams{
		JobID:    jobID,
		TaskType: task.Type(),
		Payload:  task.Payload(),
		Queue:    info.Queue,
		Status:   models.JobStatusEnqueued,
	}
	if err := jc.jobStore.RecordJobEnqueue(ctx, recordParams); err != nil {
		// The job is already enqueued; a missing ledger row is not fatal.
		log.Errorf("Failed to record job enqueue event to DB for Task ID %s: %v", info.ID, err)
	}

	return info, nil
}

// EnqueueClassifyFile enqueues one classify task on the default queue.
func (jc *AsynqJobClient) EnqueueClassifyFile(ctx context.Context, payload tasks.ClassifyFilePayload) (*asynq.TaskInfo, error) {
	task, err := tasks.NewClassifyFileTask(payload)
	if err != nil {
		return nil, err
	}
	info, err := jc.Enqueue(ctx, task, asynq.Queue(tasks.QueueDefault), asynq.MaxRetry(3))
	if err != nil {
		return nil, fmt.Errorf("enqueue classify job for %s: %w", payload.InputPath, err)
	}
	return info, nil
}

// Ensure AsynqJobClient satisfies JobClient interface
var _ JobClient = (*AsynqJobClient)(nil)
