// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package metering

import (
	"context"
	"errors"
	"time"
)

// ErrBudgetExceeded is returned by callers that turn an over-budget
// decision into a request rejection. It is distinct from credential
// errors so the surface can present a different message.
var ErrBudgetExceeded = errors.New("spending limit reached for this key")

// Repository defines the persistence operations the metering layer
// needs. The storage itself is owned by the surrounding billing store.
type Repository interface {
	// SaveUsage appends one usage record.
	SaveUsage(ctx context.Context, record *UsageRecord) error

	// SumCostInWindow returns the summed cost in cents of all records
	// for the key with a timestamp in the half-open interval [from, to).
	SumCostInWindow(ctx context.Context, apiKeyID string, from, to time.Time) (int64, error)
}

// BudgetEnforcer decides whether a key may spend more. The decision is
// evaluated fresh on every call because usage is appended concurrently
// by other requests; two concurrent requests may both pass and jointly
// exceed the limit by at most one request's cost. That race is accepted:
// vendor billing is not transactionally coupled to this check, so a hard
// reservation would buy nothing.
type BudgetEnforcer struct {
	repo Repository
}

// NewBudgetEnforcer creates a budget enforcer backed by repo.
func NewBudgetEnforcer(repo Repository) *BudgetEnforcer {
	return &BudgetEnforcer{repo: repo}
}

// IsOverBudget reports whether the summed usage of the key inside the
// window strictly exceeds the window's limit.
func (e *BudgetEnforcer) IsOverBudget(ctx context.Context, apiKeyID string, window BudgetWindow) (bool, error) {
	sum, err := e.repo.SumCostInWindow(ctx, apiKeyID, window.StartedAt, window.End())
	if err != nil {
		return false, err
	}
	return sum > window.LimitInCent, nil
}
