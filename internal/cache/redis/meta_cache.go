package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

const defaultMetaTTL = 6 * time.Hour

// MetaCache implements domain.MetaCache as a read-through Redis layer in
// front of the ledger's MetaStore. The ledger stays the source of truth;
// Redis only holds hot copies for ttl.
//
// Key schema:
//
//	{prefix}meta:{conditionID} - hash with field "data" containing JSON
type MetaCache struct {
	c       *Client
	rdb     *redis.Client
	backing domain.MetaStore
	ttl     time.Duration
	logger  *slog.Logger
}

var _ domain.MetaCache = (*MetaCache)(nil)

// NewMetaCache creates a MetaCache. A ttl <= 0 uses six hours.
func NewMetaCache(c *Client, backing domain.MetaStore, ttl time.Duration, logger *slog.Logger) *MetaCache {
	if ttl <= 0 {
		ttl = defaultMetaTTL
	}
	return &MetaCache{
		c:       c,
		rdb:     c.Underlying(),
		backing: backing,
		ttl:     ttl,
		logger:  logger.With(slog.String("component", "meta_cache")),
	}
}

func (mc *MetaCache) metaKey(conditionID string) string { return mc.c.key("meta", conditionID) }

// Get returns the cached record, falling back to the ledger and warming
// Redis on a hit there. It returns domain.ErrNotFound when neither has it.
func (mc *MetaCache) Get(ctx context.Context, conditionID string) (domain.MarketMeta, error) {
	data, err := mc.rdb.HGet(ctx, mc.metaKey(conditionID), "data").Bytes()
	switch {
	case err == nil:
		var meta domain.MarketMeta
		if err := json.Unmarshal(data, &meta); err == nil {
			return meta, nil
		}
		mc.logger.DebugContext(ctx, "discarding undecodable cached meta",
			slog.String("condition_id", conditionID))
	case errors.Is(err, redis.Nil):
	default:
		// Redis trouble degrades to the ledger.
		mc.logger.DebugContext(ctx, "redis meta read failed",
			slog.String("condition_id", conditionID),
			slog.String("error", err.Error()),
		)
	}

	meta, err := mc.backing.GetMeta(ctx, conditionID)
	if err != nil {
		return domain.MarketMeta{}, err
	}
	if err := mc.setHot(ctx, meta); err != nil {
		mc.logger.DebugContext(ctx, "redis meta warm failed",
			slog.String("condition_id", conditionID),
			slog.String("error", err.Error()),
		)
	}
	return meta, nil
}

// Put writes the record to the ledger, then replaces the Redis copy.
func (mc *MetaCache) Put(ctx context.Context, meta domain.MarketMeta) error {
	if err := mc.backing.PutMeta(ctx, meta); err != nil {
		return err
	}
	return mc.setHot(ctx, meta)
}

func (mc *MetaCache) setHot(ctx context.Context, meta domain.MarketMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("redis: marshal meta %s: %w", meta.ConditionID, err)
	}
	key := mc.metaKey(meta.ConditionID)

	pipe := mc.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, mc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set meta %s: %w", meta.ConditionID, err)
	}
	return nil
}
