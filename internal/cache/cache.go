// Package cache stores rendered widget payloads in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prisvakt/compliance-service/internal/compliance"
)

// ErrMiss is returned when the key is not cached
var ErrMiss = errors.New("cache miss")

// WidgetCache caches JSON payloads per variant. A cache without a client
// always misses and ignores writes.
type WidgetCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewWidgetCache creates a cache with the given entry TTL
func NewWidgetCache(client redis.UniversalClient, ttl time.Duration) *WidgetCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &WidgetCache{client: client, ttl: ttl, prefix: "compliance:widget:"}
}

// Key builds the cache key of a variant
func (c *WidgetCache) Key(key compliance.VariantKey) string {
	return fmt.Sprintf("%s%s:%s:%s", c.prefix, key.Shop, key.ProductID, key.VariantID)
}

// Get decodes the cached payload of a variant into out
func (c *WidgetCache) Get(ctx context.Context, key compliance.VariantKey, out any) error {
	if c == nil || c.client == nil {
		return ErrMiss
	}
	data, err := c.client.Get(ctx, c.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// Set stores the payload of a variant
func (c *WidgetCache) Set(ctx context.Context, key compliance.VariantKey, payload any) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode widget payload: %w", err)
	}
	return c.client.Set(ctx, c.Key(key), data, c.ttl).Err()
}

// Invalidate drops the cached payload of a variant
func (c *WidgetCache) Invalidate(ctx context.Context, key compliance.VariantKey) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.Key(key)).Err()
}
