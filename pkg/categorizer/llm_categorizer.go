package categorizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"shipclass/internal/models"
)

// LLMCategorizer implements BatchClassifier
// relies on a text completion API
type LLMCategorizer struct {
	client         Completer
	promptTemplate string
	columns        []Column
}

// NewLLMCategorizer creates a categorizer around a completion client.
// An empty prompt selects DefaultPromptTemplate, nil columns select DefaultColumns.
func NewLLMCategorizer(client Completer, prompt string, columns []Column) *LLMCategorizer {
	if len(columns) == 0 {
		columns = DefaultColumns
	}
	return &LLMCategorizer{
		client:         client,
		promptTemplate: prompt,
		columns:        columns,
	}
}

// RequiredColumns returns the source headers the prompt reads.
func (c *LLMCategorizer) RequiredColumns() []string {
	names := make([]string, len(c.columns))
	for i, col := range c.columns {
		names[i] = col.Name
	}
	return names
}

// Prompt renders the prompt for batch without sending it.
func (c *LLMCategorizer) Prompt(batch models.Batch) string {
	return RenderPrompt(c.promptTemplate, c.columns, batch)
}

// ClassifyBatch issues exactly one completion call for batch and returns the raw reply.
// Every failure comes back as *models.ExternalServiceError.
func (c *LLMCategorizer) ClassifyBatch(ctx context.Context, batch models.Batch) (string, error) {
	if c.client == nil {
		return "", &models.ExternalServiceError{Batch: batch.Number, Attempts: 1, Err: errors.New("LLM categorizer is not initialized with a completion client")}
	}

	prompt := c.Prompt(batch)
	log.Debugf("Classifying batch %d (%d rows, prompt %d bytes)", batch.Number, batch.Len(), len(prompt))

	content, err := c.client.Complete(ctx, prompt)
	if err != nil {
		return "", &models.ExternalServiceError{Batch: batch.Number, Attempts: 1, Err: fmt.Errorf("completion failed: %w", err)}
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", &models.ExternalServiceError{Batch: batch.Number, Attempts: 1, Err: errors.New("empty response from model")}
	}
	return content, nil
}
