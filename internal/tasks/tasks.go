package tasks

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// Defines constants for task types used in Asynq.

const (
	// TypeClassifyFile classifies one table (usually a chunk file) into an output table.
	TypeClassifyFile = "classify:file"

	// QueueDefault is the queue classify tasks are enqueued on.
	QueueDefault = "default"
)

// ClassifyFilePayload is the JSON payload of a TypeClassifyFile task.
type ClassifyFilePayload struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
	Sheet      string `json:"sheet,omitempty"`
}

// NewClassifyFileTask builds a classify task for p.
func NewClassifyFileTask(p ClassifyFilePayload) (*asynq.Task, error) {
	if p.InputPath == "" || p.OutputPath == "" {
		return nil, errors.New("classify task needs both input_path and output_path")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal classify payload: %w", err)
	}
	return asynq.NewTask(TypeClassifyFile, b), nil
}

// ParseClassifyFilePayload decodes the payload of a TypeClassifyFile task.
func ParseClassifyFilePayload(t *asynq.Task) (ClassifyFilePayload, error) {
	var p ClassifyFilePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("invalid %s payload: %w", TypeClassifyFile, err)
	}
	if p.InputPath == "" || p.OutputPath == "" {
		return p, fmt.Errorf("invalid %s payload: input_path and output_path are required", TypeClassifyFile)
	}
	return p, nil
}
