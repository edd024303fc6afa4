// Package scorecache caches the latest readiness scorecard per strategy
// in Redis so transition deltas survive process restarts without a
// database round trip.
package scorecache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/aurelius/promotion/internal/readiness"
)

const keyPrefix = "promotion:scorecard:"

// Cache implements persistence.ScorecardCache on Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New wraps an existing Redis client. A zero TTL stores entries without
// expiry.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Put stores the scorecard under the strategy key, replacing any
// previous entry.
func (c *Cache) Put(ctx context.Context, payload readiness.Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal scorecard: %w", err)
	}

	if err := c.client.Set(ctx, keyPrefix+payload.StrategyID, body, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache scorecard for %s: %w", payload.StrategyID, err)
	}
	return nil
}

// Get returns the cached scorecard, or nil on a miss. A corrupt cache
// entry is treated as a miss and logged rather than failing the scoring
// path.
func (c *Cache) Get(ctx context.Context, strategyID string) (*readiness.Payload, error) {
	body, err := c.client.Get(ctx, keyPrefix+strategyID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached scorecard for %s: %w", strategyID, err)
	}

	var payload readiness.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn().Err(err).Str("strategy_id", strategyID).Msg("discarding corrupt cached scorecard")
		return nil, nil
	}
	return &payload, nil
}

// Ping verifies the Redis connection for startup health reporting.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
