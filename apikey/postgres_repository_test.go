// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package apikey

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyRows(keys ...*Key) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "key_id", "secret_hash", "salt", "state", "name",
		"limit_in_cent", "budget_minutes", "expires_at", "created_at",
	})
	for _, k := range keys {
		var expires interface{}
		if k.ExpiresAt != nil {
			expires = *k.ExpiresAt
		}
		rows.AddRow(k.ID, k.KeyID, k.SecretHash, k.Salt, k.State, k.Name,
			k.LimitInCent, k.BudgetMinutes, expires, k.CreatedAt)
	}
	return rows
}

func TestPostgresInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	key := &Key{
		ID: "id-1", KeyID: "abcdef0123456789", SecretHash: "hash", Salt: "salt",
		State: StateActive, Name: "bot", LimitInCent: 500, BudgetMinutes: 1440,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO api_keys").
		WithArgs(key.ID, key.KeyID, key.SecretHash, key.Salt, key.State, key.Name,
			key.LimitInCent, key.BudgetMinutes, nil, key.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewPostgresRepository(db)
	require.NoError(t, repo.Insert(context.Background(), key))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetByKeyID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expiry := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	stored := &Key{
		ID: "id-1", KeyID: "abcdef0123456789", SecretHash: "hash", Salt: "salt",
		State: StateActive, Name: "bot", LimitInCent: 500, BudgetMinutes: 1440,
		ExpiresAt: &expiry, CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectQuery("SELECT .* FROM api_keys WHERE key_id").
		WithArgs("abcdef0123456789").
		WillReturnRows(keyRows(stored))

	repo := NewPostgresRepository(db)
	got, err := repo.GetByKeyID(context.Background(), "abcdef0123456789")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, stored.ID, got.ID)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Equal(expiry))
}

func TestPostgresGetByKeyIDMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT .* FROM api_keys WHERE key_id").
		WithArgs("nosuchkey").
		WillReturnRows(keyRows())

	repo := NewPostgresRepository(db)
	got, err := repo.GetByKeyID(context.Background(), "nosuchkey")
	require.NoError(t, err)
	assert.Nil(t, got, "missing key is (nil, nil), not an error")
}

func TestPostgresUpdateState(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE api_keys SET state").
		WithArgs("id-1", StateInactive).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresRepository(db)
	require.NoError(t, repo.UpdateState(context.Background(), "id-1", StateInactive))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateStateMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE api_keys SET state").
		WithArgs("missing", StateDeleted).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPostgresRepository(db)
	err = repo.UpdateState(context.Background(), "missing", StateDeleted)
	reason, ok := IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonNotFound, reason)
}

func TestPostgresDeleteModelMappings(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM api_key_models").
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	repo := NewPostgresRepository(db)
	require.NoError(t, repo.DeleteModelMappings(context.Background(), "id-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
