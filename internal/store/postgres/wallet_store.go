package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// WalletStore implements domain.WalletStore.
type WalletStore struct {
	pool *pgxpool.Pool
}

// NewWalletStore creates a WalletStore backed by pool.
func NewWalletStore(pool *pgxpool.Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// AddWallet inserts addr; adding an existing wallet is a no-op.
func (s *WalletStore) AddWallet(ctx context.Context, addr string) error {
	const query = `INSERT INTO watched_wallets (wallet) VALUES ($1) ON CONFLICT (wallet) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query, domain.NormalizeWallet(addr)); err != nil {
		return fmt.Errorf("postgres: add wallet: %w", err)
	}
	return nil
}

// RemoveWallet deletes addr if present.
func (s *WalletStore) RemoveWallet(ctx context.Context, addr string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM watched_wallets WHERE wallet = $1`, domain.NormalizeWallet(addr)); err != nil {
		return fmt.Errorf("postgres: remove wallet: %w", err)
	}
	return nil
}

// ListWallets returns the watched wallets in insertion order.
func (s *WalletStore) ListWallets(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT wallet FROM watched_wallets ORDER BY added_at, wallet`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list wallets: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("postgres: scan wallet: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
