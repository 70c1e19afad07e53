package domain

import "context"

// MetaCache provides fast market metadata lookups. Get returns ErrNotFound on
// a miss.
type MetaCache interface {
	Get(ctx context.Context, conditionID string) (MarketMeta, error)
	Put(ctx context.Context, meta MarketMeta) error
}
