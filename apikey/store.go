// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package apikey

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"educhat/platform/shared/logger"
)

// Repository defines the persistence operations the credential store
// needs. The backing tables are owned by the surrounding storage layer.
type Repository interface {
	Insert(ctx context.Context, key *Key) error
	GetByKeyID(ctx context.Context, keyID string) (*Key, error)
	GetByID(ctx context.Context, id string) (*Key, error)
	UpdateState(ctx context.Context, id string, state State) error
	List(ctx context.Context) ([]Key, error)

	// DeleteModelMappings removes the key's model-mapping rows. Usage
	// history is untouched; deletion of a key is logical.
	DeleteModelMappings(ctx context.Context, id string) error
}

// Store generates, validates, and state-transitions API keys.
type Store struct {
	repo Repository
	log  *logger.Logger
	now  func() time.Time
}

// NewStore creates a credential store.
func NewStore(repo Repository, log *logger.Logger) *Store {
	if log == nil {
		log = logger.New("apikey")
	}
	return &Store{repo: repo, log: log, now: time.Now}
}

// CreateParams carries the operator-supplied fields of a new key.
type CreateParams struct {
	Name          string
	LimitInCent   int64
	BudgetMinutes int
	ExpiresAt     *time.Time
}

// Create generates a fresh key pair, persists the hashed credential,
// and returns the stored record together with the display string. The
// display string is the only place the secret ever appears.
func (s *Store) Create(ctx context.Context, params CreateParams) (*Key, string, error) {
	generated, err := Generate()
	if err != nil {
		return nil, "", err
	}

	key := &Key{
		ID:            uuid.NewString(),
		KeyID:         generated.KeyID,
		SecretHash:    generated.Hash,
		Salt:          generated.Salt,
		State:         StateActive,
		Name:          params.Name,
		LimitInCent:   params.LimitInCent,
		BudgetMinutes: params.BudgetMinutes,
		ExpiresAt:     params.ExpiresAt,
		CreatedAt:     s.now().UTC(),
	}

	if err := s.repo.Insert(ctx, key); err != nil {
		return nil, "", fmt.Errorf("failed to store api key: %w", err)
	}

	s.log.Info("", "api key created", map[string]interface{}{
		"key_id": key.KeyID,
		"name":   key.Name,
	})

	return key, generated.Display, nil
}

// Validate checks a presented key string and returns the full key
// record when the credential is valid.
//
// The checks run in a fixed order: structure, existence, state, expiry,
// and only then the secret hash, compared in constant time. A malformed
// key never reaches the repository.
func (s *Store) Validate(ctx context.Context, presented string) (*Key, error) {
	keyID, secret, err := Parse(presented)
	if err != nil {
		return nil, err
	}

	key, err := s.repo.GetByKeyID(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, &ValidationError{Reason: ReasonNotFound}
	}

	switch key.State {
	case StateDeleted:
		return nil, &ValidationError{Reason: ReasonDeleted}
	case StateInactive:
		return nil, &ValidationError{Reason: ReasonInactive}
	}

	if key.Expired(s.now()) {
		return nil, &ValidationError{Reason: ReasonExpired}
	}

	if !hashEquals(HashSecret(secret, key.Salt), key.SecretHash) {
		return nil, &ValidationError{Reason: ReasonSecretMismatch}
	}

	return key, nil
}

// SetActive transitions a key between active and inactive. Deleted keys
// are terminal and cannot be transitioned.
func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	key, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if key == nil {
		return &ValidationError{Reason: ReasonNotFound}
	}
	if key.State == StateDeleted {
		return &ValidationError{Reason: ReasonDeleted}
	}

	state := StateInactive
	if active {
		state = StateActive
	}
	return s.repo.UpdateState(ctx, id, state)
}

// Delete performs a logical deletion: the key row is kept with state
// deleted and its model mappings are removed. Usage history survives.
func (s *Store) Delete(ctx context.Context, id string) error {
	key, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if key == nil {
		return &ValidationError{Reason: ReasonNotFound}
	}

	if err := s.repo.UpdateState(ctx, id, StateDeleted); err != nil {
		return err
	}
	if err := s.repo.DeleteModelMappings(ctx, id); err != nil {
		return err
	}

	s.log.Info("", "api key deleted", map[string]interface{}{"key_id": key.KeyID})
	return nil
}

// List returns all stored keys, deleted ones included.
func (s *Store) List(ctx context.Context) ([]Key, error) {
	return s.repo.List(ctx)
}
