package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// DefaultOpportunityKey is where the discovery service publishes its latest
// scan result: a JSON array of opportunities, replaced wholesale each scan.
const DefaultOpportunityKey = "arbitrage:opportunities"

// OpportunityCache reads and writes the shared opportunity snapshot.
type OpportunityCache struct {
	rdb *redis.Client
	key string
}

// NewOpportunityCache creates a cache over the given key. An empty key falls
// back to DefaultOpportunityKey.
func NewOpportunityCache(c *Client, key string) *OpportunityCache {
	if key == "" {
		key = DefaultOpportunityKey
	}
	return &OpportunityCache{rdb: c.Underlying(), key: key}
}

// Get returns the current snapshot. A missing key is an empty snapshot, not
// an error.
func (c *OpportunityCache) Get(ctx context.Context) ([]domain.Opportunity, error) {
	data, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get opportunities: %w", err)
	}

	var opps []domain.Opportunity
	if err := json.Unmarshal(data, &opps); err != nil {
		return nil, fmt.Errorf("redis: decode opportunities: %w", err)
	}
	return opps, nil
}

// Set replaces the snapshot with a TTL so a dead publisher cannot leave a
// stale snapshot behind indefinitely.
func (c *OpportunityCache) Set(ctx context.Context, opps []domain.Opportunity, ttl time.Duration) error {
	data, err := json.Marshal(opps)
	if err != nil {
		return fmt.Errorf("redis: marshal opportunities: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set opportunities: %w", err)
	}
	return nil
}
