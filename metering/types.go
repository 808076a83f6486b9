// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package metering

import "time"

// UsageRecord is one append-only billing entry. Records are never
// mutated after insertion; budget enforcement reads them back in
// aggregate.
type UsageRecord struct {
	ID               string    `json:"id"`
	RequestID        string    `json:"request_id"`
	APIKeyID         string    `json:"api_key_id"`
	ModelID          string    `json:"model_id"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	Images           int       `json:"images,omitempty"`
	CostInCent       int64     `json:"cost_in_cent"`
	Estimated        bool      `json:"estimated"`
	Timestamp        time.Time `json:"timestamp"`
}

// BudgetWindow bounds the interval over which usage is summed for
// enforcement. The window is half-open: a record counts iff its
// timestamp t satisfies StartedAt <= t < StartedAt + Duration.
type BudgetWindow struct {
	StartedAt       time.Time
	DurationMinutes int
	LimitInCent     int64
}

// End returns the exclusive upper bound of the window.
func (w BudgetWindow) End() time.Time {
	return w.StartedAt.Add(time.Duration(w.DurationMinutes) * time.Minute)
}
