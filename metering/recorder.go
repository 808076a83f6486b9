// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package metering

import (
	"context"
	"time"

	"github.com/google/uuid"

	"educhat/platform/shared/logger"
)

// Recorder computes the cost of a finished request and appends the
// resulting usage record. Persistence failures are logged and returned;
// they never mutate already-written records.
type Recorder struct {
	repo Repository
	log  *logger.Logger
}

// NewRecorder creates a usage recorder.
func NewRecorder(repo Repository, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.New("metering")
	}
	return &Recorder{repo: repo, log: log}
}

// Record prices the measured usage against the model's price model and
// appends a usage record. The returned record carries the computed cost.
//
// An unknown price kind is billed at zero and logged for operator
// review. Estimated usage is logged at informational level: it signals
// reduced billing accuracy, not a failure.
func (r *Recorder) Record(ctx context.Context, requestID, apiKeyID, modelID string, price PriceModel, m Measured, estimated bool) (*UsageRecord, error) {
	if !price.Known() {
		r.log.Warn(requestID, "unknown price model kind, billing as zero", map[string]interface{}{
			"model_id": modelID,
			"kind":     string(price.Kind),
		})
	}
	if estimated {
		r.log.Info(requestID, "usage estimated from token heuristic", map[string]interface{}{
			"model_id":          modelID,
			"prompt_tokens":     m.PromptTokens,
			"completion_tokens": m.CompletionTokens,
		})
	}

	record := &UsageRecord{
		ID:               uuid.NewString(),
		RequestID:        requestID,
		APIKeyID:         apiKeyID,
		ModelID:          modelID,
		PromptTokens:     m.PromptTokens,
		CompletionTokens: m.CompletionTokens,
		Images:           m.Images,
		CostInCent:       Cost(price, m),
		Estimated:        estimated,
		Timestamp:        time.Now().UTC(),
	}

	if err := r.repo.SaveUsage(ctx, record); err != nil {
		r.log.Error(requestID, "failed to persist usage record", map[string]interface{}{
			"model_id": modelID,
			"error":    err.Error(),
		})
		return nil, err
	}

	return record, nil
}
