package cache

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/amirasaad/storefront/pkg/cache"
	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseCache(t *testing.T, c cache.Cache) {
	ctx := context.Background()
	t.Helper()

	t.Run("get set delete", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, cache.BalanceKey("Fdy"), balance.New(50, 2, 0), time.Minute, false))
		var got balance.Balance
		ok, err := c.Get(ctx, cache.BalanceKey("Fdy"), &got)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, balance.New(50, 2, 0), got)

		require.NoError(t, c.Delete(ctx, cache.BalanceKey("Fdy")))
		ok, err = c.Get(ctx, cache.BalanceKey("Fdy"), &got)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete pattern", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "stock_count_A", 1, time.Minute, false))
		require.NoError(t, c.Set(ctx, "stock_count_B", 2, time.Minute, false))
		require.NoError(t, c.Set(ctx, "product_A", "x", time.Minute, false))

		n, err := c.DeletePattern(ctx, "stock_count_*")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		var s string
		ok, err := c.Get(ctx, "product_A", &s)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("clear temporary keeps permanent", func(t *testing.T) {
		require.NoError(t, c.ClearAll(ctx))
		require.NoError(t, c.Set(ctx, "keep", true, 0, true))
		require.NoError(t, c.Set(ctx, "drop", true, time.Minute, false))

		n, err := c.ClearTemporary(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		var v bool
		ok, _ := c.Get(ctx, "keep", &v)
		assert.True(t, ok)
		ok, _ = c.Get(ctx, "drop", &v)
		assert.False(t, ok)

		st, err := c.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, st.Entries)
		assert.Equal(t, 1, st.Permanent)
	})
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()
	exerciseCache(t, c)
}

func TestMemoryCache_ExpiryIsLazyAndSwept(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "a", 1, time.Millisecond, false))
	require.NoError(t, c.Set(ctx, "b", 1, time.Millisecond, false))
	require.NoError(t, c.Set(ctx, "c", 1, 0, false))
	time.Sleep(5 * time.Millisecond)

	var v int
	ok, err := c.Get(ctx, "a", &v)
	require.NoError(t, err)
	assert.False(t, ok, "expired entry must miss")

	n, err := c.ClearExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only b is left to sweep")

	ok, _ = c.Get(ctx, "c", &v)
	assert.True(t, ok, "zero ttl never expires")
}

func TestMemoryCache_ValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	defer c.Close()

	in := []string{"A", "B"}
	require.NoError(t, c.Set(ctx, "lines", in, time.Minute, false))
	in[0] = "mutated"

	var out []string
	_, err := c.Get(ctx, "lines", &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, out)
}

func TestMemoryCache_BadPattern(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()
	_, err := c.DeletePattern(context.Background(), "[")
	assert.Error(t, err)
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewRedisCacheWithOptions(opt, "storefront-test-"+uuid.NewString()+":", logger)
	defer func() {
		_ = c.ClearAll(context.Background())
		_ = c.Close()
	}()
	exerciseCache(t, c)
}
