package domain

import (
	"context"
	"time"
)

// StateStore persists opaque string state by key (cursors, captured chat id).
type StateStore interface {
	// GetState returns ErrNotFound when the key has never been set.
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
}

// WalletStore persists the watched wallet set. Addresses are stored
// lowercase.
type WalletStore interface {
	AddWallet(ctx context.Context, addr string) error
	RemoveWallet(ctx context.Context, addr string) error
	ListWallets(ctx context.Context) ([]string, error)
}

// TradeStore is the deduplicating store of observed trades.
type TradeStore interface {
	HasTrade(ctx context.Context, txHash string) (bool, error)
	// InsertTrade stores ev unless its tx hash is already present. A
	// duplicate is not an error; inserted reports whether a row was added.
	InsertTrade(ctx context.Context, ev TradeEvent, category string) (inserted bool, err error)
	MarkNotified(ctx context.Context, txHash string) error
	GetTrade(ctx context.Context, txHash string) (ObservedTrade, error)
}

// MetaStore persists market metadata by condition id.
type MetaStore interface {
	GetMeta(ctx context.Context, conditionID string) (MarketMeta, error)
	PutMeta(ctx context.Context, meta MarketMeta) error
}

// ActionStore is the append-only mirror action log.
type ActionStore interface {
	AppendAction(ctx context.Context, action MirrorAction) error
	ListActionsSince(ctx context.Context, since time.Time, limit int) ([]MirrorAction, error)
}

// Ledger is the full persistent store used by the watcher.
type Ledger interface {
	StateStore
	WalletStore
	TradeStore
	MetaStore
	ActionStore
}
