package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/farxc/dsd_reconciler/internal/reconcile"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopLocker(t *testing.T) {
	unlock, err := NopLocker{}.Lock(context.Background(), "catalog:awg")
	require.NoError(t, err)
	assert.NoError(t, unlock(context.Background()))
}

func TestNewRedisDisabled(t *testing.T) {
	rdb, err := NewRedis(context.Background(), RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, rdb)
}

// The tests below need a live Redis; set TEST_REDIS_ADDR to run them.
func testRedisAddr(t *testing.T) string {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	return addr
}

func TestCatalogCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	rdb, err := NewRedis(ctx, RedisConfig{Addr: testRedisAddr(t)})
	require.NoError(t, err)
	defer rdb.Close()

	c := NewCatalog(rdb, time.Minute)
	upc := "9" + uuid.NewString()[:11]

	_, ok, err := c.Get(ctx, upc)
	require.NoError(t, err)
	assert.False(t, ok)

	want := &reconcile.LookupResult{UPC: upc, Found: true, Source: reconcile.LookupSourceCatalog, Confidence: reconcile.ConfidenceLow}
	require.NoError(t, c.Set(ctx, upc, want))

	got, ok, err := c.Get(ctx, upc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.Confidence, got.Confidence)

	removed, err := c.Invalidate(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, 1)

	_, ok, err = c.Get(ctx, upc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisLockerExcludes(t *testing.T) {
	ctx := context.Background()
	rdb, err := NewRedis(ctx, RedisConfig{Addr: testRedisAddr(t)})
	require.NoError(t, err)
	defer rdb.Close()

	l := NewRedisLocker(rdb, time.Minute)
	key := "test:" + uuid.NewString()

	unlock, err := l.Lock(ctx, key)
	require.NoError(t, err)

	_, err = l.Lock(ctx, key)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, unlock(ctx))

	unlock, err = l.Lock(ctx, key)
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}
