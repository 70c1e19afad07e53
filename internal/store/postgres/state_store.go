package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// StateStore implements domain.StateStore using the app_state table.
type StateStore struct {
	pool *pgxpool.Pool
}

// NewStateStore creates a StateStore backed by pool.
func NewStateStore(pool *pgxpool.Pool) *StateStore {
	return &StateStore{pool: pool}
}

// GetState returns the value for key or domain.ErrNotFound.
func (s *StateStore) GetState(ctx context.Context, key string) (string, error) {
	var v string
	err := s.pool.QueryRow(ctx, `SELECT value FROM app_state WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres: get state %s: %w", key, err)
	}
	return v, nil
}

// SetState upserts the value for key.
func (s *StateStore) SetState(ctx context.Context, key, value string) error {
	const query = `
		INSERT INTO app_state (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("postgres: set state %s: %w", key, err)
	}
	return nil
}
