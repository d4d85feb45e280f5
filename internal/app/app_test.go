package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipclass/internal/config"
	"shipclass/internal/models"
	"shipclass/internal/services"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.DSN = ":memory:"
	cfg.Classifier.Provider = config.ProviderOpenAI
	cfg.Classifier.Model = "gpt-4o-mini"
	cfg.Classifier.BatchSize = 10
	cfg.Classifier.Workers = 2
	cfg.Classifier.MaxAttempts = 2
	cfg.Classifier.BaseDelayMs = 10
	cfg.Input.ChunkSize = 100
	cfg.Input.ChunkFolder = "chunks"
	cfg.Output.Folder = "classified_chunks"
	return cfg
}

func TestNewApp(t *testing.T) {
	a, err := NewApp(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.CostTracker)
	assert.NotNil(t, a.RunService)
	assert.NotNil(t, a.CostService)
	assert.Nil(t, a.ClassificationService, "built on demand")
	assert.Nil(t, a.JobClient, "built on demand")
	require.NoError(t, a.Store.Ping(context.Background()))
}

func TestNewApp_Errors(t *testing.T) {
	_, err := NewApp(context.Background(), nil, nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Database.Driver = "mysql"
	_, err = NewApp(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestInitClassification_WithoutProvider(t *testing.T) {
	a, err := NewApp(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	require.NoError(t, a.InitClassification(context.Background(), false))
	require.NotNil(t, a.ClassificationService)
	assert.Nil(t, a.CompletionService)
	assert.Equal(t, []string{"component name", "Drawing Info", "Part Name", "equipment"}, a.ClassificationService.RequiredColumns())

	opts := a.ClassificationService.Options()
	assert.Equal(t, 10, opts.BatchSize)
	assert.Equal(t, 2, opts.Workers)

	// Without a provider every batch degrades to the error label.
	labels, stats := a.ClassificationService.ClassifyRecords(context.Background(), []models.Record{{Index: 0, Fields: map[string]string{}}})
	require.Len(t, labels, 1)
	assert.True(t, labels[0].IsError())
	assert.Equal(t, 1, stats.FailedBatches)
}

func TestInitClassification_WithProvider(t *testing.T) {
	cfg := testConfig()
	a, err := NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	err = a.InitClassification(context.Background(), true)
	assert.True(t, errors.Is(err, config.ErrMissingAPIKey))

	cfg.Classifier.OpenaiApiKey = "sk-test"
	require.NoError(t, a.InitClassification(context.Background(), true))
	require.NotNil(t, a.CompletionService)
	assert.Equal(t, config.ProviderOpenAI, a.CompletionService.Name())
	assert.Equal(t, services.ProviderStatusActive, a.CompletionService.Status())

	cfg.Classifier.Provider = "anthropic"
	a.CompletionService = nil
	assert.Error(t, a.InitClassification(context.Background(), true))
}
