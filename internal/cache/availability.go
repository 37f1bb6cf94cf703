// Package cache provides a Redis-backed cache for per-day resource
// availability.  Availability reads dominate the request mix; the cache
// keeps them off the primary database and is invalidated whenever a
// reservation transition touches the underlying day.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Availability caches the occupied time block keys of one resource on
// one date.  A nil client disables the cache; every method degrades to
// a miss or a no-op so callers never have to branch on whether Redis is
// configured.
type Availability struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvailability returns a cache over the given Redis client.
func NewAvailability(client *redis.Client, ttl time.Duration) *Availability {
	return &Availability{client: client, ttl: ttl}
}

func key(resourceID uint64, date string) string {
	return fmt.Sprintf("avail:%d:%s", resourceID, date)
}

// Get returns the cached occupied blocks for the resource and date, and
// whether the entry was present.  Redis errors are logged and treated
// as misses.
func (c *Availability) Get(ctx context.Context, resourceID uint64, date string) ([]string, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key(resourceID, date)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("availability-cache: get failed: %v", err)
		return nil, false
	}
	var blocks []string
	if err := json.Unmarshal(raw, &blocks); err != nil {
		log.Printf("availability-cache: corrupt entry for %s: %v", key(resourceID, date), err)
		return nil, false
	}
	return blocks, true
}

// Set stores the occupied blocks for the resource and date.  An empty
// set is cached too; a day with no reservations is the common case and
// worth remembering.
func (c *Availability) Set(ctx context.Context, resourceID uint64, date string, blocks []string) {
	if c == nil || c.client == nil {
		return
	}
	if blocks == nil {
		blocks = []string{}
	}
	raw, err := json.Marshal(blocks)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(resourceID, date), raw, c.ttl).Err(); err != nil {
		log.Printf("availability-cache: set failed: %v", err)
	}
}

// Invalidate drops the cached days for a resource.  Called after any
// transition that claims or releases blocks on those days.
func (c *Availability) Invalidate(ctx context.Context, resourceID uint64, dates ...string) {
	if c == nil || c.client == nil || len(dates) == 0 {
		return
	}
	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = key(resourceID, d)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("availability-cache: invalidate failed: %v", err)
	}
}
