package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisIdempotency(t *testing.T) (*RedisIdempotencyStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisIdempotencyStore(client, time.Hour), mr
}

func TestRedisIdempotencyStore_Lifecycle(t *testing.T) {
	store, mr := setupRedisIdempotency(t)
	ctx := context.Background()

	_, claimed, err := store.Begin(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, claimed)

	rec, claimed, err := store.Begin(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.True(t, rec.Pending)

	require.NoError(t, store.Complete(ctx, "k1", IdempotencyRecord{OrderID: "order-9"}))
	rec, claimed, err = store.Begin(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, IdempotencyRecord{OrderID: "order-9"}, rec)

	mr.FastForward(2 * time.Hour)
	_, claimed, err = store.Begin(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, claimed, "expired keys can be claimed again")
}

func TestRedisIdempotencyStore_NoOpAndAbort(t *testing.T) {
	store, _ := setupRedisIdempotency(t)
	ctx := context.Background()

	_, _, err := store.Begin(ctx, "k2")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "k2", IdempotencyRecord{NoOp: true}))

	rec, claimed, err := store.Begin(ctx, "k2")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.True(t, rec.NoOp)

	require.NoError(t, store.Abort(ctx, "k2"))
	_, claimed, err = store.Begin(ctx, "k2")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestRedisIdempotencyStore_Unavailable(t *testing.T) {
	store, mr := setupRedisIdempotency(t)
	mr.Close()

	_, _, err := store.Begin(context.Background(), "k3")
	assert.Error(t, err)
}

func TestMemoryIdempotencyStore(t *testing.T) {
	store := NewMemoryIdempotencyStore()
	ctx := context.Background()

	_, claimed, _ := store.Begin(ctx, "k")
	assert.True(t, claimed)

	rec, claimed, _ := store.Begin(ctx, "k")
	assert.False(t, claimed)
	assert.True(t, rec.Pending)

	_ = store.Complete(ctx, "k", IdempotencyRecord{OrderID: "o1"})
	rec, _, _ = store.Begin(ctx, "k")
	assert.Equal(t, "o1", rec.OrderID)
	assert.False(t, rec.Pending)
}

func TestRedisIdempotencyStore_PendingClaimExpiresEarly(t *testing.T) {
	store, mr := setupRedisIdempotency(t)
	ctx := context.Background()

	_, claimed, err := store.Begin(ctx, "k3")
	require.NoError(t, err)
	require.True(t, claimed)
	assert.Equal(t, DefaultPendingTTL, mr.TTL("k3"))

	// the claimant never finished; a retry may claim again
	mr.FastForward(DefaultPendingTTL + time.Second)
	_, claimed, err = store.Begin(ctx, "k3")
	require.NoError(t, err)
	assert.True(t, claimed)

	require.NoError(t, store.Complete(ctx, "k3", IdempotencyRecord{OrderID: "order-3"}))
	assert.Equal(t, time.Hour, mr.TTL("k3"), "results keep the full ttl")
}

func TestNewRedisIdempotencyStore_PendingTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()

	store := NewRedisIdempotencyStore(client, time.Hour, WithPendingTTL(30*time.Second))
	_, _, err := store.Begin(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, mr.TTL("a"))

	short := NewRedisIdempotencyStore(client, 10*time.Second)
	_, _, err = short.Begin(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, mr.TTL("b"), "a claim never outlives a result")
}
