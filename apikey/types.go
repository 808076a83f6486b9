// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package apikey

import (
	"fmt"
	"time"
)

// State is the lifecycle state of an API key.
type State string

const (
	// StateActive keys may authenticate.
	StateActive State = "active"

	// StateInactive keys are temporarily disabled by an admin.
	// They can be reactivated.
	StateInactive State = "inactive"

	// StateDeleted is terminal. Deletion is logical: the row stays so
	// usage history keeps its referent, but the key never validates
	// again and its model mappings are removed.
	StateDeleted State = "deleted"
)

// Key is a stored API key credential. The secret itself is never
// stored; only its salted hash is.
type Key struct {
	ID          string     `json:"id"`
	KeyID       string     `json:"key_id"`
	SecretHash  string     `json:"-"`
	Salt        string     `json:"-"`
	State       State      `json:"state"`
	Name        string     `json:"name"`
	LimitInCent int64      `json:"limit_in_cent"`
	// BudgetMinutes is the length of the key's budget window, anchored
	// at CreatedAt.
	BudgetMinutes int        `json:"budget_minutes"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Expired reports whether the key's expiry gate is closed at now.
// A key expiring exactly at now is expired: validity requires
// now < ExpiresAt, not now <= ExpiresAt.
func (k *Key) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

// Reason is a machine-readable validation failure cause. Reasons are
// logged internally; the HTTP surface collapses all of them into one
// generic unauthorized response so callers cannot probe which check
// failed.
type Reason string

const (
	ReasonMalformed      Reason = "malformed_key"
	ReasonNotFound       Reason = "not_found"
	ReasonExpired        Reason = "expired"
	ReasonInactive       Reason = "inactive"
	ReasonDeleted        Reason = "deleted"
	ReasonSecretMismatch Reason = "secret_mismatch"
)

// ValidationError reports why a presented key failed validation.
type ValidationError struct {
	Reason Reason
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("api key validation failed: %s", e.Reason)
}

// IsValidationError reports whether err is a ValidationError and, if
// so, returns its reason.
func IsValidationError(err error) (Reason, bool) {
	if verr, ok := err.(*ValidationError); ok {
		return verr.Reason, true
	}
	return "", false
}
