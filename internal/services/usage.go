package services

import (
	"context"

	log "github.com/sirupsen/logrus"

	"shipclass/internal/config"
	"shipclass/internal/costtracker"
	"shipclass/internal/models"
)

// recordUsage prices one completion with the model's pricing entry and hands
// it to the tracker. Failures are logged, never returned.
func recordUsage(ctx context.Context, tracker costtracker.CostTracker, pricing map[string]config.PricingInfo,
	provider, model string, inputTokens, outputTokens int) {
	if tracker == nil || inputTokens+outputTokens == 0 {
		return
	}
	priceInfo, ok := pricing[model]
	if !ok {
		log.Warnf("Pricing info not found for model '%s'. Recording tokens without cost.", model)
	}
	cost := float64(inputTokens)*priceInfo.InputPerToken + float64(outputTokens)*priceInfo.OutputPerToken
	event := costtracker.CostEvent{
		Operation:    models.ServiceTypeClassification,
		Provider:     provider,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		AmountUSD:    cost,
	}
	if err := tracker.RecordCost(ctx, event); err != nil {
		log.Errorf("Failed to record AI usage log for %s completion: %v", provider, err)
	}
}
