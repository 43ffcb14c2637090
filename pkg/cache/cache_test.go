package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestCacheStats_HitRate(t *testing.T) {
	tests := []struct {
		name  string
		stats CacheStats
		want  float64
	}{
		{"50% hit rate", CacheStats{Hits: 50, Misses: 50}, 0.5},
		{"100% hit rate", CacheStats{Hits: 100}, 1.0},
		{"0% hit rate", CacheStats{Misses: 100}, 0.0},
		{"no requests", CacheStats{}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.stats.HitRate(), 1e-9)
		})
	}
}

func TestMemoryCache_GetSet(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	c := NewMemoryCache(10, 0)
	defer c.Close()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v1"), 0))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	// il valore restituito è una copia
	got[0] = 'x'
	again, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("v1"), again)

	require.NoError(t, c.Set(ctx, "k", []byte("value2"), 0))
	got, _ = c.Get(ctx, "k")
	assert.Equal(t, []byte("value2"), got)

	stats := c.Stats()
	assert.Equal(t, int64(3), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(6), stats.Size)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Zero(t, c.Stats().Size)
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	c := NewMemoryCache(2, 0)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	// "a" diventa il più recente, quindi viene rimosso "b"
	_, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	_, err = c.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "a")
	assert.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestMemoryCache_Expiry(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	c := NewMemoryCache(10, time.Hour)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "short", []byte("x"), 10*time.Millisecond))
	require.NoError(t, c.Set(ctx, "long", []byte("y"), 0))

	time.Sleep(20 * time.Millisecond)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "long")
	assert.NoError(t, err)

	require.NoError(t, c.Set(ctx, "gone", []byte("z"), time.Nanosecond))
	time.Sleep(time.Millisecond)
	c.removeExpired()
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_Clear(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	c := NewMemoryCache(10, 0)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Clear(ctx))
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Stats().Size)

	// Close è idempotente
	require.NoError(t, c.Close())
}

func TestTieredCache_PromotesFromRemote(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	remote := NewMemoryCache(10, 0)
	local := NewMemoryCache(10, 0)
	c := NewTieredCache(local, remote, time.Minute)
	defer c.Close()

	require.NoError(t, remote.Set(ctx, "k", []byte("remote"), 0))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("remote"), got)
	assert.Equal(t, 1, local.Len())

	require.NoError(t, c.Set(ctx, "n", []byte("both"), 0))
	_, err = remote.Get(ctx, "n")
	assert.NoError(t, err)

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, Config{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)
	require.NoError(t, c.Close())

	_, err = New(ctx, Config{Backend: "memcached"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_RedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cfg := DefaultConfig()
	cfg.Backend = BackendRedis
	cfg.Redis.Host = "127.0.0.1:1"

	_, err := New(ctx, cfg)
	assert.Error(t, err)

	// tiered degrada a sola memoria
	cfg.Backend = BackendTiered
	c, err := New(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)
	require.NoError(t, c.Close())
}

func TestRedisCache_Live(t *testing.T) {
	addr := os.Getenv("GOLEAPCODE_TEST_REDIS")
	if addr == "" {
		t.Skip("GOLEAPCODE_TEST_REDIS not set")
	}

	ctx := context.Background()
	c, err := NewRedisCache(ctx, RedisConfig{Host: addr, KeyPrefix: "goleapcode-test:"})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Clear(ctx))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestHashKeyAndJSON(t *testing.T) {
	assert.Equal(t, HashKey("m1", "hello"), HashKey("m1", "hello"))
	assert.NotEqual(t, HashKey("m1", "hello"), HashKey("m1hello"))
	assert.Len(t, HashKey("x"), 64)

	ctx := context.Background()
	c := NewMemoryCache(10, 0)
	defer c.Close()

	type payload struct {
		Text string `json:"text"`
	}
	require.NoError(t, SetJSON(ctx, c, "p", payload{Text: "hi"}, 0))

	var out payload
	require.NoError(t, GetJSON(ctx, c, "p", &out))
	assert.Equal(t, "hi", out.Text)
}
