package inbox

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"dealflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "dealflow:unread:"

// Cache stores unread counts in one Redis hash per tenant. Every write
// replaces the tenant's hash and refreshes its TTL, so counts from a dead
// poller expire instead of lingering.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

func NewCache(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	return &Cache{rdb: rdb, ttl: ttl, log: log}
}

func tenantKey(tenantID uuid.UUID) string {
	return keyPrefix + tenantID.String()
}

// Replace overwrites the cached counts for the given tenants.
func (c *Cache) Replace(ctx context.Context, counts map[uuid.UUID]map[uuid.UUID]int) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for tenantID, leads := range counts {
			key := tenantKey(tenantID)
			pipe.Del(ctx, key)
			if len(leads) == 0 {
				continue
			}
			fields := make(map[string]interface{}, len(leads))
			for leadID, n := range leads {
				fields[leadID.String()] = n
			}
			pipe.HSet(ctx, key, fields)
			pipe.Expire(ctx, key, c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write unread cache: %w", err)
	}
	return nil
}

// UnreadCounts returns the cached counts for leadIDs. A lead that is missing
// from the cache, or a cache failure, yields zero.
func (c *Cache) UnreadCounts(ctx context.Context, tenantID uuid.UUID, leadIDs []uuid.UUID) map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(leadIDs))
	if len(leadIDs) == 0 {
		return out
	}

	fields := make([]string, len(leadIDs))
	for i, id := range leadIDs {
		fields[i] = id.String()
	}
	vals, err := c.rdb.HMGet(ctx, tenantKey(tenantID), fields...).Result()
	if err != nil {
		c.log.Warn("unread cache read failed", "tenantId", tenantID, "error", err)
		return out
	}

	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			continue
		}
		out[leadIDs[i]] = n
	}
	return out
}
