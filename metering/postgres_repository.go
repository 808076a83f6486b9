// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package metering

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// SaveUsage appends one usage record. Records are insert-only; there is
// no update path by design.
func (r *PostgresRepository) SaveUsage(ctx context.Context, record *UsageRecord) error {
	query := `
		INSERT INTO usage_records (
			id, request_id, api_key_id, model_id, prompt_tokens,
			completion_tokens, images, cost_in_cent, estimated, ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.RequestID, record.APIKeyID, record.ModelID,
		record.PromptTokens, record.CompletionTokens, record.Images,
		record.CostInCent, record.Estimated, record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save usage record: %w", err)
	}

	return nil
}

// SumCostInWindow sums cost_in_cent over the half-open interval
// [from, to). Both the lower-inclusive and upper-exclusive bounds are
// enforced here so every budget code path shares one boundary policy.
func (r *PostgresRepository) SumCostInWindow(ctx context.Context, apiKeyID string, from, to time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(cost_in_cent), 0)
		FROM usage_records
		WHERE api_key_id = $1 AND ts >= $2 AND ts < $3
	`

	var sum int64
	err := r.db.QueryRowContext(ctx, query, apiKeyID, from, to).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum usage window: %w", err)
	}

	return sum, nil
}

// Verify interface compliance at compile time.
var _ Repository = (*PostgresRepository)(nil)
