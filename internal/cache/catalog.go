package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/farxc/dsd_reconciler/internal/reconcile"
	"github.com/redis/go-redis/v9"
)

// CatalogKeyPrefix namespaces cached catalog lookups.
const CatalogKeyPrefix = "catalog:upc:"

const DefaultCatalogTTL = 6 * time.Hour

// Catalog caches wholesale catalog lookups by canonical UPC.
type Catalog struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCatalog(rdb *redis.Client, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &Catalog{rdb: rdb, ttl: ttl}
}

func catalogKey(upc string) string {
	return CatalogKeyPrefix + upc
}

func (c *Catalog) Get(ctx context.Context, upc string) (*reconcile.LookupResult, bool, error) {
	data, err := c.rdb.Get(ctx, catalogKey(upc)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var res reconcile.LookupResult
	if err := json.Unmarshal(data, &res); err != nil {
		// A stale or foreign value is treated as a miss and overwritten later.
		return nil, false, nil
	}
	return &res, true, nil
}

func (c *Catalog) Set(ctx context.Context, upc string, res *reconcile.LookupResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode lookup result: %w", err)
	}
	return c.rdb.Set(ctx, catalogKey(upc), data, c.ttl).Err()
}

// Invalidate drops every cached catalog lookup. It runs after imports.
func (c *Catalog) Invalidate(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, CatalogKeyPrefix+"*", 500).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to scan catalog cache: %w", err)
		}
		if len(keys) > 0 {
			n, err := c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("failed to clear catalog cache: %w", err)
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}
