package costtracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"shipclass/internal/models"
	"shipclass/internal/store"
)

// CostEvent represents a single AI usage event and its cost.
type CostEvent struct {
	Operation    string // e.g. "classification"
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	AmountUSD    float64
	RunID        *uuid.UUID
}

// CostTracker provides methods to record and report costs.
type CostTracker interface {
	RecordCost(ctx context.Context, event CostEvent) error
	TotalCost(ctx context.Context) (float64, error)
}

// New returns a tracker that drops every event.
func New() CostTracker {
	return &noopCostTracker{}
}

type noopCostTracker struct{}

func (n *noopCostTracker) RecordCost(ctx context.Context, event CostEvent) error { return nil }
func (n *noopCostTracker) TotalCost(ctx context.Context) (float64, error)        { return 0, nil }

// NewStoreTracker records events as ai_usage_logs rows in s.
func NewStoreTracker(s store.CostTrackingStore) CostTracker {
	if s == nil {
		return New()
	}
	return &storeCostTracker{store: s}
}

type storeCostTracker struct {
	store store.CostTrackingStore
}

func (t *storeCostTracker) RecordCost(ctx context.Context, event CostEvent) error {
	runID := event.RunID
	if runID == nil {
		runID = RunIDFromContext(ctx)
	}
	usage := &models.AIUsageLog{
		Timestamp:    time.Now().UTC(),
		ProviderName: event.Provider,
		ServiceType:  event.Operation,
		ModelName:    event.Model,
		InputTokens:  event.InputTokens,
		OutputTokens: event.OutputTokens,
		Cost:         event.AmountUSD,
		RelatedRunID: runID,
	}
	if err := t.store.RecordUsage(ctx, usage); err != nil {
		return fmt.Errorf("record cost: %w", err)
	}
	log.Debugf("Recorded AI usage: Provider=%s, Service=%s, Model=%s, InputTokens=%d, OutputTokens=%d, Cost=%.8f",
		usage.ProviderName, usage.ServiceType, usage.ModelName, usage.InputTokens, usage.OutputTokens, usage.Cost)
	return nil
}

func (t *storeCostTracker) TotalCost(ctx context.Context) (float64, error) {
	total, _, _, err := t.store.GetUsageSummary(ctx)
	return total, err
}

type runIDKey struct{}

// WithRunID tags ctx with the run that usage recorded under it belongs to.
func WithRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the run id set by WithRunID, or nil.
func RunIDFromContext(ctx context.Context) *uuid.UUID {
	id, ok := ctx.Value(runIDKey{}).(uuid.UUID)
	if !ok {
		return nil
	}
	return &id
}
