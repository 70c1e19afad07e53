package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// Ledger composes the individual stores into a domain.Ledger.
type Ledger struct {
	*StateStore
	*WalletStore
	*TradeStore
	*MetaStore
	*ActionStore
}

var _ domain.Ledger = (*Ledger)(nil)

// NewLedger builds a Ledger on pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{
		StateStore:  NewStateStore(pool),
		WalletStore: NewWalletStore(pool),
		TradeStore:  NewTradeStore(pool),
		MetaStore:   NewMetaStore(pool),
		ActionStore: NewActionStore(pool),
	}
}
