package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// QuantityCache keeps the last committed quantity per product in Redis.
// It is refreshed on every commit and purely advisory: the database row
// stays the source of truth.
type QuantityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewQuantityCache constructs the cache.
func NewQuantityCache(client *redis.Client, ttl time.Duration) *QuantityCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &QuantityCache{client: client, ttl: ttl}
}

func quantityKey(productID string) string {
	return fmt.Sprintf("stock:qty:%s", productID)
}

// Store writes the committed quantity.
func (c *QuantityCache) Store(ctx context.Context, productID string, quantity int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, quantityKey(productID), quantity, c.ttl).Err()
}

// Load returns the cached quantity and whether it was present.
func (c *QuantityCache) Load(ctx context.Context, productID string) (int64, bool, error) {
	if c == nil || c.client == nil {
		return 0, false, nil
	}
	raw, err := c.client.Get(ctx, quantityKey(productID)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil
		}
		return 0, false, err
	}
	qty, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("ledger: corrupt quantity snapshot: %w", err)
	}
	return qty, true, nil
}

// Invalidate drops a product's snapshot.
func (c *QuantityCache) Invalidate(ctx context.Context, productID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, quantityKey(productID)).Err()
}
