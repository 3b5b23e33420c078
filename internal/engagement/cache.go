package engagement

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the best-effort read cache in front of the durable store.
//
// Contract: a cache outage degrades to always-miss and must never block or
// fail a policy evaluation, so no method returns an error. Implementations
// log failures and move on.
type Cache interface {
	Get(ctx context.Context, recipientID string) (State, bool)
	Set(ctx context.Context, recipientID string, s State)
	Delete(ctx context.Context, recipientID string)
}

const cacheKeyPrefix = "engagement:state:"

// RedisCache caches engagement records as JSON with a bounded TTL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisCache{rdb: rdb, ttl: ttl, log: log}
}

func (c *RedisCache) Get(ctx context.Context, recipientID string) (State, bool) {
	raw, err := c.rdb.Get(ctx, cacheKeyPrefix+recipientID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("engagement cache read failed", "recipient_id", recipientID, "err", err)
		}
		return State{}, false
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		// Corrupt entry: drop it and fall through to the durable store.
		c.log.Warn("engagement cache entry corrupt", "recipient_id", recipientID, "err", err)
		c.Delete(ctx, recipientID)
		return State{}, false
	}
	return s, true
}

func (c *RedisCache) Set(ctx context.Context, recipientID string, s State) {
	raw, err := json.Marshal(s)
	if err != nil {
		c.log.Warn("engagement cache encode failed", "recipient_id", recipientID, "err", err)
		return
	}
	if err := c.rdb.Set(ctx, cacheKeyPrefix+recipientID, raw, c.ttl).Err(); err != nil {
		c.log.Warn("engagement cache write failed", "recipient_id", recipientID, "err", err)
	}
}

func (c *RedisCache) Delete(ctx context.Context, recipientID string) {
	if err := c.rdb.Del(ctx, cacheKeyPrefix+recipientID).Err(); err != nil {
		c.log.Warn("engagement cache invalidation failed", "recipient_id", recipientID, "err", err)
	}
}
