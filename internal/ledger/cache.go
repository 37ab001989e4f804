package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const stockVersionKey = "stock:version"

// StockCache caches on-hand totals in Redis behind a global version. Any
// committed movement bumps the version, which orphans every cached total on
// every instance sharing the Redis.
// A nil *StockCache or one without a client always calls the loader.
type StockCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewStockCache instantiates the cache helper.
func NewStockCache(client *redis.Client, ttl time.Duration) *StockCache {
	return &StockCache{client: client, ttl: ttl}
}

func (c *StockCache) enabled() bool {
	return c != nil && c.client != nil
}

// Version returns the current cache version, initialising when missing.
func (c *StockCache) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, stockVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, stockVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, stockVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the cache key with the current version.
func (c *StockCache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(parts, ":")
	if !c.enabled() {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// FetchOnHand returns the cached total for key or fills it with loader.
// Concurrent misses for the same key share one loader call.
func (c *StockCache) FetchOnHand(ctx context.Context, productID, locationID int64, containerID *int64, loader func(context.Context) (int64, error)) (int64, error) {
	if loader == nil {
		return 0, errors.New("ledger: cache loader required")
	}
	if !c.enabled() {
		return loader(ctx)
	}
	key, err := c.BuildKey(ctx, "stock", "onhand", strconv.FormatInt(productID, 10), strconv.FormatInt(locationID, 10), containerToken(containerID))
	if err != nil {
		return loader(ctx)
	}
	if v, err := c.client.Get(ctx, key).Int64(); err == nil {
		return v, nil
	} else if !errors.Is(err, redis.Nil) {
		return loader(ctx)
	}

	// The shared load must outlive the caller that started it.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		v, err := loader(loadCtx)
		if err != nil {
			return int64(0), err
		}
		_ = c.client.Set(loadCtx, key, v, c.ttl).Err()
		return v, nil
	})
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int64), nil
	}
}

// Bump invalidates the cache by incrementing the global version.
func (c *StockCache) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Incr(ctx, stockVersionKey).Err()
}

func containerToken(id *int64) string {
	if id == nil {
		return "all"
	}
	return "c" + strconv.FormatInt(*id, 10)
}
