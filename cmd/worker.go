package cmd

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"shipclass/internal/app"
	"shipclass/internal/worker"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background classify worker",
	Long:  `Starts the Asynq worker process that classifies the chunk files enqueued by 'shipclass enqueue'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to get application context: %w", err)
		}
		if err := appInstance.Config.ValidateQueue(); err != nil {
			return err
		}
		if err := requireClassifier(ctx, appInstance); err != nil {
			return err
		}

		if err := runWorker(ctx, appInstance); err != nil {
			log.Errorf("Worker exited with error: %v", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// runWorker serves classify tasks until ctx is cancelled.
func runWorker(ctx context.Context, appInstance *app.App) error {
	cfg := appInstance.Config

	srv := asynq.NewServer(
		appInstance.RedisOpt(),
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues:      cfg.Worker.Queues,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID, _ := asynq.GetTaskID(ctx)
				log.WithFields(log.Fields{
					"task_id": taskID,
					"type":    task.Type(),
					"payload": string(task.Payload()),
				}).Errorf("Asynq task failed: %v", err)
			}),
			Logger: log.StandardLogger(),
		},
	)

	mux := asynq.NewServeMux()
	svc := appInstance.ClassificationService
	worker.RegisterHandlers(mux, worker.ClassifyDeps{
		Classifier: svc,
		ForSheet:   func(sheet string) worker.FileClassifier { return svc.WithSheet(sheet) },
		JobStore:   appInstance.Store,
	})

	log.Infof("Starting Asynq worker server (Concurrency: %d, Queues: %v)...", cfg.Worker.Concurrency, cfg.Worker.Queues)
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start Asynq server: %w", err)
	}

	<-ctx.Done()

	log.Info("Shutdown signal received. Initiating graceful shutdown...")
	srv.Shutdown()
	log.Info("Worker shutdown complete.")
	return nil
}
