// Package metadata resolves market descriptive records by condition id,
// reading through a cache to the remote market registry.
package metadata

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// Registry is the remote market lookup. It returns domain.ErrNotFound when
// the registry has no market for the condition id.
type Registry interface {
	MarketByConditionID(ctx context.Context, conditionID string) (domain.MarketMeta, error)
}

// Resolver is a cache-through lookup of MarketMeta. Misses are never cached,
// so a market the registry does not know yet is retried on the next call.
type Resolver struct {
	cache    domain.MetaCache
	registry Registry
	logger   *slog.Logger
	now      func() time.Time
}

// NewResolver creates a Resolver.
func NewResolver(cache domain.MetaCache, registry Registry, logger *slog.Logger) *Resolver {
	return &Resolver{
		cache:    cache,
		registry: registry,
		logger:   logger.With(slog.String("component", "metadata_resolver")),
		now:      time.Now,
	}
}

// Resolve returns the metadata for conditionID and whether it was found.
func (r *Resolver) Resolve(ctx context.Context, conditionID string) (domain.MarketMeta, bool) {
	if conditionID == "" {
		return domain.MarketMeta{}, false
	}

	meta, err := r.cache.Get(ctx, conditionID)
	if err == nil {
		return meta, true
	}
	if !errors.Is(err, domain.ErrNotFound) {
		r.logger.WarnContext(ctx, "meta cache read failed, fetching remotely",
			slog.String("condition_id", conditionID),
			slog.String("error", err.Error()),
		)
	}

	meta, err = r.registry.MarketByConditionID(ctx, conditionID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.WarnContext(ctx, "market registry lookup failed",
				slog.String("condition_id", conditionID),
				slog.String("error", err.Error()),
			)
		}
		return domain.MarketMeta{}, false
	}

	meta.ConditionID = conditionID
	meta.UpdatedAt = r.now().UTC()
	if err := r.cache.Put(ctx, meta); err != nil {
		r.logger.WarnContext(ctx, "meta cache write failed",
			slog.String("condition_id", conditionID),
			slog.String("error", err.Error()),
		)
	}
	return meta, true
}

// Refresh fetches conditionID from the registry and overwrites the cached
// record, bypassing any cached value.
func (r *Resolver) Refresh(ctx context.Context, conditionID string) (domain.MarketMeta, error) {
	meta, err := r.registry.MarketByConditionID(ctx, conditionID)
	if err != nil {
		return domain.MarketMeta{}, err
	}
	meta.ConditionID = conditionID
	meta.UpdatedAt = r.now().UTC()
	if err := r.cache.Put(ctx, meta); err != nil {
		return meta, err
	}
	return meta, nil
}
