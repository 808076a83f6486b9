// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package apikey

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const keyColumns = `id, key_id, secret_hash, salt, state, name, limit_in_cent, budget_minutes, expires_at, created_at`

// Insert stores a new key row.
func (r *PostgresRepository) Insert(ctx context.Context, key *Key) error {
	query := `
		INSERT INTO api_keys (` + keyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		key.ID, key.KeyID, key.SecretHash, key.Salt, key.State, key.Name,
		key.LimitInCent, key.BudgetMinutes, key.ExpiresAt, key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert api key: %w", err)
	}
	return nil
}

// GetByKeyID looks a key up by its public key identifier. A missing row
// yields (nil, nil); the caller decides how to report it.
func (r *PostgresRepository) GetByKeyID(ctx context.Context, keyID string) (*Key, error) {
	return r.getWhere(ctx, "key_id", keyID)
}

// GetByID looks a key up by its internal id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Key, error) {
	return r.getWhere(ctx, "id", id)
}

func (r *PostgresRepository) getWhere(ctx context.Context, column, value string) (*Key, error) {
	query := `SELECT ` + keyColumns + ` FROM api_keys WHERE ` + column + ` = $1`

	var key Key
	var expiresAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&key.ID, &key.KeyID, &key.SecretHash, &key.Salt, &key.State, &key.Name,
		&key.LimitInCent, &key.BudgetMinutes, &expiresAt, &key.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load api key: %w", err)
	}

	if expiresAt.Valid {
		key.ExpiresAt = &expiresAt.Time
	}
	return &key, nil
}

// UpdateState sets the key's lifecycle state.
func (r *PostgresRepository) UpdateState(ctx context.Context, id string, state State) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET state = $2 WHERE id = $1`, id, state)
	if err != nil {
		return fmt.Errorf("failed to update api key state: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return &ValidationError{Reason: ReasonNotFound}
	}
	return nil
}

// List returns all key rows, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Key, error) {
	query := `SELECT ` + keyColumns + ` FROM api_keys ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var key Key
		var expiresAt sql.NullTime
		if err := rows.Scan(
			&key.ID, &key.KeyID, &key.SecretHash, &key.Salt, &key.State, &key.Name,
			&key.LimitInCent, &key.BudgetMinutes, &expiresAt, &key.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		if expiresAt.Valid {
			key.ExpiresAt = &expiresAt.Time
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DeleteModelMappings removes the key's rows in the model-mapping table.
func (r *PostgresRepository) DeleteModelMappings(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM api_key_models WHERE api_key_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete model mappings: %w", err)
	}
	return nil
}

// Verify interface compliance at compile time.
var _ Repository = (*PostgresRepository)(nil)
