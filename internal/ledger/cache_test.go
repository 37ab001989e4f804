package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*StockCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStockCache(client, time.Minute), mr
}

func TestStockCacheServesUntilBump(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (int64, error) {
		calls++
		return int64(10 * calls), nil
	}

	v, err := cache.FetchOnHand(ctx, 1, 2, nil, loader)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)

	v, err = cache.FetchOnHand(ctx, 1, 2, nil, loader)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)
	assert.Equal(t, 1, calls)

	require.NoError(t, cache.Bump(ctx))

	v, err = cache.FetchOnHand(ctx, 1, 2, nil, loader)
	require.NoError(t, err)
	assert.Equal(t, int64(20), v)
	assert.Equal(t, 2, calls)
}

func TestStockCacheKeysIncludeContainer(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	box := int64(3)

	_, err := cache.FetchOnHand(ctx, 1, 2, nil, func(context.Context) (int64, error) { return 8, nil })
	require.NoError(t, err)
	v, err := cache.FetchOnHand(ctx, 1, 2, &box, func(context.Context) (int64, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestStockCacheVersionStartsAtOne(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ver)

	key, err := cache.BuildKey(ctx, "stock", "onhand", "1")
	require.NoError(t, err)
	assert.Equal(t, "stock:onhand:1:1", key)

	require.NoError(t, cache.Bump(ctx))
	got, err := mr.Get(stockVersionKey)
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestStockCacheBumpReachesPeers(t *testing.T) {
	mr := miniredis.RunT(t)
	newPeer := func() *StockCache {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewStockCache(client, time.Minute)
	}
	a, b := newPeer(), newPeer()
	ctx := context.Background()

	v, err := b.FetchOnHand(ctx, 1, 2, nil, func(context.Context) (int64, error) { return 5, nil })
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	require.NoError(t, a.Bump(ctx))

	v, err = b.FetchOnHand(ctx, 1, 2, nil, func(context.Context) (int64, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
}

func TestStockCacheSharedLoadSurvivesCancelledCaller(t *testing.T) {
	cache, _ := newTestCache(t)

	var calls atomic.Int32
	var startOnce sync.Once
	started, release := make(chan struct{}), make(chan struct{})
	loader := func(ctx context.Context) (int64, error) {
		calls.Add(1)
		startOnce.Do(func() { close(started) })
		<-release
		return 5, ctx.Err()
	}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.FetchOnHand(first, 1, 2, nil, loader)
		firstErr <- err
	}()
	<-started
	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	type result struct {
		v   int64
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := cache.FetchOnHand(context.Background(), 1, 2, nil, loader)
		second <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, int64(5), got.v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNilStockCacheAlwaysLoads(t *testing.T) {
	var cache *StockCache
	ctx := context.Background()
	calls := 0
	for i := 0; i < 2; i++ {
		_, err := cache.FetchOnHand(ctx, 1, 1, nil, func(context.Context) (int64, error) {
			calls++
			return 1, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
	require.NoError(t, cache.Bump(ctx))
}
