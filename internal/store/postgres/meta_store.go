package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// MetaStore implements domain.MetaStore with a JSONB column per market.
type MetaStore struct {
	pool *pgxpool.Pool
}

// NewMetaStore creates a MetaStore backed by pool.
func NewMetaStore(pool *pgxpool.Pool) *MetaStore {
	return &MetaStore{pool: pool}
}

// GetMeta returns the stored metadata or domain.ErrNotFound.
func (s *MetaStore) GetMeta(ctx context.Context, conditionID string) (domain.MarketMeta, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT meta_json FROM market_meta WHERE condition_id = $1`, conditionID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MarketMeta{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.MarketMeta{}, fmt.Errorf("postgres: get meta %s: %w", conditionID, err)
	}

	var m domain.MarketMeta
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.MarketMeta{}, fmt.Errorf("postgres: meta %s: %w: %v", conditionID, domain.ErrBadPayload, err)
	}
	return m, nil
}

// PutMeta replaces the stored record wholesale.
func (s *MetaStore) PutMeta(ctx context.Context, meta domain.MarketMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("postgres: marshal meta: %w", err)
	}
	const query = `
		INSERT INTO market_meta (condition_id, meta_json, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (condition_id) DO UPDATE SET meta_json = EXCLUDED.meta_json, updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query, meta.ConditionID, raw); err != nil {
		return fmt.Errorf("postgres: put meta %s: %w", meta.ConditionID, err)
	}
	return nil
}
