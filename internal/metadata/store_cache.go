package metadata

import (
	"context"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// StoreCache adapts a ledger MetaStore to domain.MetaCache. It is the cache
// used when Redis is not configured.
type StoreCache struct {
	store domain.MetaStore
}

var _ domain.MetaCache = StoreCache{}

// NewStoreCache wraps store.
func NewStoreCache(store domain.MetaStore) StoreCache {
	return StoreCache{store: store}
}

func (c StoreCache) Get(ctx context.Context, conditionID string) (domain.MarketMeta, error) {
	return c.store.GetMeta(ctx, conditionID)
}

func (c StoreCache) Put(ctx context.Context, meta domain.MarketMeta) error {
	return c.store.PutMeta(ctx, meta)
}
