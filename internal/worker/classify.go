// Package worker holds the asynq task handlers run by the background worker.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"shipclass/internal/models"
	"shipclass/internal/services"
	"shipclass/internal/store"
	"shipclass/internal/tasks"
)

// FileClassifier processes one input table into one output table.
type FileClassifier interface {
	ProcessFile(ctx context.Context, inputPath, outputPath string) (*services.FileResult, error)
}

// ClassifyDeps holds the dependencies of the classify handler.
type ClassifyDeps struct {
	Classifier FileClassifier
	// ForSheet returns the classifier to use for a payload that names a sheet.
	ForSheet func(sheet string) FileClassifier
	JobStore store.JobStore // optional
}

// RegisterHandlers registers every task handler on mux.
func RegisterHandlers(mux *asynq.ServeMux, deps ClassifyDeps) {
	log.Infof("Registering %s handler", tasks.TypeClassifyFile)
	mux.HandleFunc(tasks.TypeClassifyFile, HandleClassifyFile(deps))
}

// HandleClassifyFile classifies the chunk named in the task payload. Tasks
// whose output already exists are marked skipped. Input that can never
// succeed (bad payload, missing columns) is not retried.
func HandleClassifyFile(deps ClassifyDeps) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		jobID := taskJobID(ctx)

		p, err := tasks.ParseClassifyFilePayload(t)
		if err != nil {
			updateStatus(ctx, deps.JobStore, jobID, models.JobStatusFailed)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		if _, err := os.Stat(p.OutputPath); err == nil {
			log.Infof("Output %s already exists, skipping task", p.OutputPath)
			updateStatus(ctx, deps.JobStore, jobID, models.JobStatusSkipped)
			return nil
		}

		classifier := deps.Classifier
		if p.Sheet != "" && deps.ForSheet != nil {
			classifier = deps.ForSheet(p.Sheet)
		}

		updateStatus(ctx, deps.JobStore, jobID, models.JobStatusRunning)
		res, err := classifier.ProcessFile(ctx, p.InputPath, p.OutputPath)
		if err != nil {
			updateStatus(ctx, deps.JobStore, jobID, models.JobStatusFailed)
			if errors.Is(err, models.ErrMissingColumn) {
				return fmt.Errorf("classify %s: %v: %w", p.InputPath, err, asynq.SkipRetry)
			}
			return fmt.Errorf("classify %s: %w", p.InputPath, err)
		}

		log.Infof("Task %s classified %s: %d rows, %d error rows", t.Type(), p.InputPath, res.Stats.Rows, res.Stats.ErrorRows)
		updateStatus(ctx, deps.JobStore, jobID, models.JobStatusCompleted)
		return nil
	}
}

func taskJobID(ctx context.Context) *uuid.UUID {
	taskID, ok := asynq.GetTaskID(ctx)
	if !ok {
		return nil
	}
	id, err := uuid.Parse(taskID)
	if err != nil {
		return nil
	}
	return &id
}

func updateStatus(ctx context.Context, js store.JobStore, jobID *uuid.UUID, status string) {
	if js == nil || jobID == nil {
		return
	}
	if err := js.UpdateJobStatus(context.WithoutCancel(ctx), *jobID, status); err != nil {
		log.Warnf("Failed to update job %s to %s: %v", jobID, status, err)
	}
}
