// Package cache holds the Redis read projection of holdings. The ledger in
// PostgreSQL stays authoritative; everything here can be dropped and rebuilt.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pharmachain/pharmachain-backend/pkg/config"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
)

// HoldingCache caches per-(party, item) holdings in Redis.
type HoldingCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewHoldingCache creates a new holding cache
func NewHoldingCache(cfg *config.RedisConfig, log *logger.Logger) *HoldingCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &HoldingCache{
		client: client,
		ttl:    cfg.TTL,
		logger: log,
	}
}

func holdingKey(partyID, itemID string) string {
	return fmt.Sprintf("holding:%s:%s", partyID, itemID)
}

// Get returns the cached holding and whether it was present.
func (c *HoldingCache) Get(ctx context.Context, partyID, itemID string) (int64, bool) {
	if c == nil {
		return 0, false
	}
	val, err := c.client.Get(ctx, holdingKey(partyID, itemID)).Result()
	if err == redis.Nil {
		return 0, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("holding cache read failed")
		return 0, false
	}

	qty, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return qty, true
}

// Set writes a holding with the configured TTL.
func (c *HoldingCache) Set(ctx context.Context, partyID, itemID string, quantity int64) {
	if c == nil {
		return
	}
	err := c.client.Set(ctx, holdingKey(partyID, itemID), strconv.FormatInt(quantity, 10), c.ttl).Err()
	if err != nil {
		c.logger.Warn().Err(err).Msg("holding cache write failed")
	}
}

// Invalidate drops the cached holdings touched by a committed transfer so
// the next read refills them from the ledger.
func (c *HoldingCache) Invalidate(ctx context.Context, itemID string, partyIDs ...string) {
	if c == nil {
		return
	}
	keys := make([]string, 0, len(partyIDs))
	for _, partyID := range partyIDs {
		keys = append(keys, holdingKey(partyID, itemID))
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("holding cache invalidation failed")
	}
}

// Health returns the health status of the cache
func (c *HoldingCache) Health(ctx context.Context) map[string]string {
	status := map[string]string{
		"status": "up",
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}

	return status
}

// Close closes the Redis connection
func (c *HoldingCache) Close() error {
	return c.client.Close()
}
