package shared

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSummaryTTL bounds how stale a cached notification reference can be.
const DefaultSummaryTTL = 10 * time.Minute

// SummaryCache keeps small JSON records in redis keyed by numeric id. A nil
// cache is valid and never hits.
type SummaryCache[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewSummaryCache returns a cache storing entries under prefix. A nil client
// yields a nil cache.
func NewSummaryCache[T any](client *redis.Client, prefix string, ttl time.Duration) *SummaryCache[T] {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultSummaryTTL
	}
	return &SummaryCache[T]{client: client, prefix: prefix, ttl: ttl}
}

func (c *SummaryCache[T]) key(id int64) string {
	return c.prefix + strconv.FormatInt(id, 10)
}

// Get returns the cached value. Redis errors count as a miss.
func (c *SummaryCache[T]) Get(ctx context.Context, id int64) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		return zero, false
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, false
	}
	return out, true
}

// Set stores value for id.
func (c *SummaryCache[T]) Set(ctx context.Context, id int64, value T) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(id), raw, c.ttl).Err()
}

// Invalidate drops the entry for id.
func (c *SummaryCache[T]) Invalidate(ctx context.Context, id int64) error {
	if c == nil {
		return nil
	}
	return c.client.Del(ctx, c.key(id)).Err()
}
