package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopline/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return NewRedisCache(client), mr
}

func testCart(userID string) *domain.Cart {
	now := time.Now().UTC()
	return &domain.Cart{
		ID:     "cart-1",
		UserID: userID,
		Items: []domain.CartLine{
			{ProductID: "p1", Quantity: 2, PriceAtAdd: 1000, AddedAt: now},
			{ProductID: "p2", Quantity: 1, PriceAtAdd: 500, AddedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestGet_Success(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	cartJSON, err := json.Marshal(testCart("user123"))
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey("user123"), string(cartJSON)))

	result, err := cache.Get(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, "user123", result.UserID)
	require.Len(t, result.Items, 2)
	assert.Equal(t, int64(1000), result.Items[0].PriceAtAdd)
	assert.Equal(t, int64(2500), result.Total())
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	result, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)

	require.NoError(t, mr.Set(cacheKey("user123"), `{"id":"cart-1","items":[`))

	_, err := cache.Get(context.Background(), "user123")
	require.ErrorContains(t, err, "decode cached cart")
}

func TestSet_StoresWithTTL(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user456", testCart("user456")))

	assert.True(t, mr.Exists(cacheKey("user456")))
	ttl := mr.TTL(cacheKey("user456"))
	assert.GreaterOrEqual(t, ttl, DefaultTTL)
	assert.Less(t, ttl, DefaultTTL+defaultJitter)

	mr.FastForward(DefaultTTL + defaultJitter)
	_, err := cache.Get(ctx, "user456")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSet_ConfiguredTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cache := NewRedisCache(client, WithTTL(time.Minute), WithJitter(0))
	require.NoError(t, cache.Set(context.Background(), "u1", testCart("u1")))
	assert.Equal(t, time.Minute, mr.TTL(cacheKey("u1")))
}

func TestSet_AfterDeleteIsDropped(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	// a fill that read the store before the mutation lands after its delete
	stale := testCart("user1")
	require.NoError(t, cache.Delete(ctx, "user1"))
	require.NoError(t, cache.Set(ctx, "user1", stale))

	_, err := cache.Get(ctx, "user1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	mr.FastForward(DefaultInvalidationWindow + time.Second)
	require.NoError(t, cache.Set(ctx, "user1", stale))
	got, err := cache.Get(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, "user1", got.UserID)
}

func TestDelete(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user789", testCart("user789")))
	require.NoError(t, cache.Delete(ctx, "user789"))
	assert.False(t, mr.Exists(cacheKey("user789")))
	assert.True(t, mr.Exists(invalidationKey("user789")))
	assert.Equal(t, DefaultInvalidationWindow, mr.TTL(invalidationKey("user789")))

	assert.NoError(t, cache.Delete(ctx, "never-cached"))
}

func TestRedisUnavailable(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.Close()

	_, err := cache.Get(context.Background(), "user123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
