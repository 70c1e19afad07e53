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

// TradeStore implements domain.TradeStore. The tx_hash primary key makes
// inserts idempotent.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// HasTrade reports whether txHash has been recorded.
func (s *TradeStore) HasTrade(ctx context.Context, txHash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM observed_trades WHERE tx_hash = $1)`, txHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: has trade %s: %w", txHash, err)
	}
	return exists, nil
}

// InsertTrade records ev unless its tx hash already exists.
func (s *TradeStore) InsertTrade(ctx context.Context, ev domain.TradeEvent, category string) (bool, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("postgres: marshal trade: %w", err)
	}

	const query = `
		INSERT INTO observed_trades (
			tx_hash, wallet, ts, condition_id, side, price, size, usdc_size,
			outcome, outcome_index, asset, slug, title, raw_json, category
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (tx_hash) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		ev.TxHash, domain.NormalizeWallet(ev.Wallet), ev.Timestamp, ev.ConditionID,
		string(ev.Side), ev.Price, ev.Size, ev.USDCSize,
		nullIfEmpty(ev.Outcome), ev.OutcomeIndex, nullIfEmpty(ev.Asset),
		nullIfEmpty(ev.Slug), nullIfEmpty(ev.Title), raw, nullIfEmpty(category),
	)
	if err != nil {
		return false, fmt.Errorf("postgres: insert trade %s: %w", ev.TxHash, err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkNotified flags txHash as alerted.
func (s *TradeStore) MarkNotified(ctx context.Context, txHash string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE observed_trades SET notified = TRUE WHERE tx_hash = $1`, txHash)
	if err != nil {
		return fmt.Errorf("postgres: mark notified %s: %w", txHash, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: mark notified %s: %w", txHash, domain.ErrNotFound)
	}
	return nil
}

// GetTrade loads a recorded trade. A row whose raw payload cannot be decoded
// yields domain.ErrBadPayload.
func (s *TradeStore) GetTrade(ctx context.Context, txHash string) (domain.ObservedTrade, error) {
	var (
		raw      []byte
		category *string
		notified bool
	)
	err := s.pool.QueryRow(ctx,
		`SELECT raw_json, category, notified FROM observed_trades WHERE tx_hash = $1`, txHash,
	).Scan(&raw, &category, &notified)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ObservedTrade{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ObservedTrade{}, fmt.Errorf("postgres: get trade %s: %w", txHash, err)
	}

	out := domain.ObservedTrade{Notified: notified, RawJSON: raw}
	if category != nil {
		out.Category = *category
	}
	if err := json.Unmarshal(raw, &out.Event); err != nil {
		return out, fmt.Errorf("postgres: trade %s: %w: %v", txHash, domain.ErrBadPayload, err)
	}
	return out, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
