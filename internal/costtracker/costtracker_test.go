package costtracker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipclass/internal/models"
)

type fakeCostStore struct {
	logs []*models.AIUsageLog
	err  error
}

func (f *fakeCostStore) RecordUsage(ctx context.Context, log *models.AIUsageLog) error {
	if f.err != nil {
		return f.err
	}
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeCostStore) ListUsage(ctx context.Context, limit, offset int) ([]*models.AIUsageLog, error) {
	return f.logs, nil
}

func (f *fakeCostStore) GetUsageSummary(ctx context.Context) (float64, int64, int64, error) {
	var cost float64
	var in, out int64
	for _, l := range f.logs {
		cost += l.Cost
		in += int64(l.InputTokens)
		out += int64(l.OutputTokens)
	}
	return cost, in, out, nil
}

func TestStoreTracker_RecordCost(t *testing.T) {
	fs := &fakeCostStore{}
	tracker := NewStoreTracker(fs)
	runID := uuid.New()
	ctx := WithRunID(context.Background(), runID)

	err := tracker.RecordCost(ctx, CostEvent{
		Operation: models.ServiceTypeClassification, Provider: "gemini", Model: "gemini-2.0-flash",
		InputTokens: 1200, OutputTokens: 300, AmountUSD: 0.0012,
	})
	require.NoError(t, err)

	require.Len(t, fs.logs, 1)
	got := fs.logs[0]
	assert.Equal(t, "gemini", got.ProviderName)
	assert.Equal(t, models.ServiceTypeClassification, got.ServiceType)
	assert.Equal(t, 1200, got.InputTokens)
	require.NotNil(t, got.RelatedRunID)
	assert.Equal(t, runID, *got.RelatedRunID, "run id is taken from the context")
	assert.False(t, got.Timestamp.IsZero())

	total, err := tracker.TotalCost(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.0012, total, 1e-12)
}

func TestStoreTracker_ExplicitRunIDWins(t *testing.T) {
	fs := &fakeCostStore{}
	explicit := uuid.New()

	require.NoError(t, NewStoreTracker(fs).RecordCost(WithRunID(context.Background(), uuid.New()), CostEvent{RunID: &explicit}))

	assert.Equal(t, explicit, *fs.logs[0].RelatedRunID)
}

func TestStoreTracker_StoreError(t *testing.T) {
	storeErr := errors.New("disk full")
	err := NewStoreTracker(&fakeCostStore{err: storeErr}).RecordCost(context.Background(), CostEvent{})
	assert.ErrorIs(t, err, storeErr)
}

func TestNew_Noop(t *testing.T) {
	tracker := NewStoreTracker(nil)
	require.NoError(t, tracker.RecordCost(context.Background(), CostEvent{AmountUSD: 5}))
	total, err := tracker.TotalCost(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRunIDFromContext(t *testing.T) {
	assert.Nil(t, RunIDFromContext(context.Background()))
	id := uuid.New()
	assert.Equal(t, id, *RunIDFromContext(WithRunID(context.Background(), id)))
}
