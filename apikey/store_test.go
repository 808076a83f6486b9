// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package apikey

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository is an in-memory Repository that counts lookups so
// tests can assert that malformed keys never reach storage.
type mockRepository struct {
	keys            map[string]*Key // by keyID
	byID            map[string]*Key
	lookupCalls     int
	mappingsDeleted []string
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		keys: make(map[string]*Key),
		byID: make(map[string]*Key),
	}
}

func (m *mockRepository) Insert(ctx context.Context, key *Key) error {
	stored := *key
	m.keys[key.KeyID] = &stored
	m.byID[key.ID] = &stored
	return nil
}

func (m *mockRepository) GetByKeyID(ctx context.Context, keyID string) (*Key, error) {
	m.lookupCalls++
	if key, ok := m.keys[keyID]; ok {
		copied := *key
		return &copied, nil
	}
	return nil, nil
}

func (m *mockRepository) GetByID(ctx context.Context, id string) (*Key, error) {
	if key, ok := m.byID[id]; ok {
		copied := *key
		return &copied, nil
	}
	return nil, nil
}

func (m *mockRepository) UpdateState(ctx context.Context, id string, state State) error {
	key, ok := m.byID[id]
	if !ok {
		return &ValidationError{Reason: ReasonNotFound}
	}
	key.State = state
	return nil
}

func (m *mockRepository) List(ctx context.Context) ([]Key, error) {
	var out []Key
	for _, key := range m.byID {
		out = append(out, *key)
	}
	return out, nil
}

func (m *mockRepository) DeleteModelMappings(ctx context.Context, id string) error {
	m.mappingsDeleted = append(m.mappingsDeleted, id)
	return nil
}

func newTestStore(t *testing.T) (*Store, *mockRepository) {
	t.Helper()
	repo := newMockRepository()
	return NewStore(repo, nil), repo
}

func TestCreateAndValidateRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	key, display, err := store.Create(ctx, CreateParams{
		Name:          "course-bot",
		LimitInCent:   500,
		BudgetMinutes: 60 * 24 * 30,
	})
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, StateActive, key.State)

	_, secret, err := Parse(display)
	require.NoError(t, err)
	assert.NotContains(t, key.SecretHash, secret, "secret must not be stored in plaintext")

	validated, err := store.Validate(ctx, display)
	require.NoError(t, err)
	assert.Equal(t, key.ID, validated.ID)
	assert.Equal(t, key.KeyID, validated.KeyID)
}

func TestValidateIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, display, err := store.Create(ctx, CreateParams{Name: "k"})
	require.NoError(t, err)

	first, err := store.Validate(ctx, display)
	require.NoError(t, err)
	second, err := store.Validate(ctx, display)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestValidateMalformedSkipsLookup(t *testing.T) {
	store, repo := newTestStore(t)

	for _, presented := range []string{"", "nonsense", "pk_abc_def", "sk_onlyonepart"} {
		_, err := store.Validate(context.Background(), presented)
		require.Error(t, err)
		reason, ok := IsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, ReasonMalformed, reason)
	}

	assert.Zero(t, repo.lookupCalls, "malformed keys must fail before any storage lookup")
}

func TestValidateUnknownKeyID(t *testing.T) {
	store, repo := newTestStore(t)

	_, err := store.Validate(context.Background(), "sk_unknownkeyid12345_secretsecret")
	reason, ok := IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonNotFound, reason)
	assert.Equal(t, 1, repo.lookupCalls)
}

func TestValidateStateGates(t *testing.T) {
	tests := []struct {
		name   string
		state  State
		reason Reason
	}{
		{"inactive key", StateInactive, ReasonInactive},
		{"deleted key", StateDeleted, ReasonDeleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, repo := newTestStore(t)
			ctx := context.Background()

			key, display, err := store.Create(ctx, CreateParams{Name: "k"})
			require.NoError(t, err)
			repo.keys[key.KeyID].State = tt.state

			_, err = store.Validate(ctx, display)
			reason, ok := IsValidationError(err)
			require.True(t, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestValidateExpiryBoundary(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	expiry := now // expires exactly "now"
	key, display, err := store.Create(ctx, CreateParams{Name: "k", ExpiresAt: &expiry})
	require.NoError(t, err)

	// A key whose expiresAt equals now is already expired: validity is
	// strict less-than.
	_, err = store.Validate(ctx, display)
	reason, ok := IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonExpired, reason)

	// One second before expiry the key is valid.
	later := now.Add(time.Second)
	repo.keys[key.KeyID].ExpiresAt = &later
	repo.byID[key.ID].ExpiresAt = &later
	_, err = store.Validate(ctx, display)
	assert.NoError(t, err)
}

func TestValidateWrongSecret(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	key, _, err := store.Create(ctx, CreateParams{Name: "k"})
	require.NoError(t, err)

	_, err = store.Validate(ctx, "sk_"+key.KeyID+"_wrongsecretwrongsecretwrongsecr")
	reason, ok := IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonSecretMismatch, reason)
}

func TestStateMachine(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	key, display, err := store.Create(ctx, CreateParams{Name: "k"})
	require.NoError(t, err)

	// active -> inactive -> active
	require.NoError(t, store.SetActive(ctx, key.ID, false))
	_, err = store.Validate(ctx, display)
	assert.Error(t, err)

	require.NoError(t, store.SetActive(ctx, key.ID, true))
	_, err = store.Validate(ctx, display)
	assert.NoError(t, err)

	// delete is terminal and removes model mappings
	require.NoError(t, store.Delete(ctx, key.ID))
	assert.Equal(t, []string{key.ID}, repo.mappingsDeleted)
	assert.Equal(t, StateDeleted, repo.byID[key.ID].State)

	_, err = store.Validate(ctx, display)
	reason, ok := IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonDeleted, reason)

	// no transition out of deleted
	assert.Error(t, store.SetActive(ctx, key.ID, true))
}

func TestDeleteUnknownKey(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.Delete(context.Background(), "missing")
	reason, ok := IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonNotFound, reason)
}
