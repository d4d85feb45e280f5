package categorizer

import (
	"context"

	"shipclass/internal/models"
)

// Column is a source column rendered into the prompt under a display label.
type Column struct {
	Name  string `mapstructure:"name" json:"name"`   // header in the source table
	Label string `mapstructure:"label" json:"label"` // label shown to the model
}

// DefaultColumns are the inventory columns the default prompt describes a part with.
var DefaultColumns = []Column{
	{Name: "component name", Label: "Component Name"},
	{Name: "Drawing Info", Label: "Drawing Info"},
	{Name: "Part Name", Label: "Part Name"},
	{Name: "equipment", Label: "Equipment"},
}

// BatchClassifier sends one batch to an external model and returns its raw reply.
type BatchClassifier interface {
	ClassifyBatch(ctx context.Context, batch models.Batch) (string, error)
}

// Completer is the single text-completion call a BatchClassifier relies on.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
