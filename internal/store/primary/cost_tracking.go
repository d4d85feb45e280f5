package primary

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"shipclass/internal/models"
)

// RecordUsage inserts usage and sets its ID.
func (s *StoreImpl) RecordUsage(ctx context.Context, usage *models.AIUsageLog) error {
	query := `
		INSERT INTO ai_usage_logs (
			timestamp, provider_name, service_type, model_name,
			input_tokens, output_tokens, cost, related_run_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	if usage.Timestamp.IsZero() {
		usage.Timestamp = time.Now().UTC()
	}
	err := s.db.QueryRow(ctx, query,
		usage.Timestamp, usage.ProviderName, usage.ServiceType, usage.ModelName,
		usage.InputTokens, usage.OutputTokens, usage.Cost, usage.RelatedRunID,
	).Scan(&usage.ID)
	if err != nil {
		return fmt.Errorf("failed to insert ai_usage_log: %w", err)
	}
	return nil
}

// ListUsage returns AI usage logs, newest first.
func (s *StoreImpl) ListUsage(ctx context.Context, limit, offset int) ([]*models.AIUsageLog, error) {
	query := `
		SELECT id, timestamp, provider_name, service_type, model_name,
		       input_tokens, output_tokens, cost, related_run_id
		FROM ai_usage_logs
		ORDER BY timestamp DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query ai_usage_logs: %w", err)
	}
	defer rows.Close()

	logs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[models.AIUsageLog])
	if err != nil {
		return nil, fmt.Errorf("failed to scan ai_usage_logs: %w", err)
	}
	return logs, nil
}

// GetUsageSummary returns the total cost and token usage.
func (s *StoreImpl) GetUsageSummary(ctx context.Context) (totalCost float64, totalInputTokens, totalOutputTokens int64, err error) {
	query := `
		SELECT
			COALESCE(SUM(cost),0),
			COALESCE(SUM(input_tokens),0),
			COALESCE(SUM(output_tokens),0)
		FROM ai_usage_logs
	`
	err = s.db.QueryRow(ctx, query).Scan(&totalCost, &totalInputTokens, &totalOutputTokens)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to summarize ai_usage_logs: %w", err)
	}
	return totalCost, totalInputTokens, totalOutputTokens, nil
}
