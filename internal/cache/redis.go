package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopline/storefront/internal/domain"
)

const (
	DefaultTTL = 15 * time.Minute
	// DefaultInvalidationWindow must outlast a store read plus the write-back
	// that follows it, so a fill started before a Delete cannot land after it.
	DefaultInvalidationWindow = 5 * time.Second

	defaultJitter = 5 * time.Minute
)

// fillScript writes KEYS[1] unless KEYS[2], the invalidation marker, is live.
var fillScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`)

type Option func(*RedisCache)

// WithTTL sets the base expiry of a cached cart. Jitter is added on top.
func WithTTL(d time.Duration) Option {
	return func(r *RedisCache) {
		if d > 0 {
			r.ttl = d
		}
	}
}

func WithJitter(d time.Duration) Option {
	return func(r *RedisCache) {
		if d >= 0 {
			r.jitter = d
		}
	}
}

func WithInvalidationWindow(d time.Duration) Option {
	return func(r *RedisCache) {
		if d > 0 {
			r.window = d
		}
	}
}

// RedisCache stores carts as JSON under cart:{userID}. Delete leaves a short
// marker behind; a Set that races the Delete is dropped while it lives.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	jitter time.Duration
	window time.Duration
}

func NewRedisCache(client redis.Cmdable, opts ...Option) *RedisCache {
	r := &RedisCache{
		client: client,
		ttl:    DefaultTTL,
		jitter: defaultJitter,
		window: DefaultInvalidationWindow,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read cached cart %s: %w", userID, err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("decode cached cart %s: %w", userID, err)
	}
	return &cart, nil
}

// Set is a fill, not a write-through: it yields to any invalidation of the
// same buyer inside the window.
func (r *RedisCache) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart %s: %w", userID, err)
	}

	ttl := r.expiry()
	keys := []string{cacheKey(userID), invalidationKey(userID)}
	if err := fillScript.Run(ctx, r.client, keys, payload, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("fill cached cart %s: %w", userID, err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, invalidationKey(userID), 1, r.window)
		pipe.Del(ctx, cacheKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate cached cart %s: %w", userID, err)
	}
	return nil
}

// expiry spreads carts cached in the same burst.
func (r *RedisCache) expiry() time.Duration {
	if r.jitter <= 0 {
		return r.ttl
	}
	return r.ttl + time.Duration(rand.Int63n(int64(r.jitter)))
}

// Both keys share a hash tag so the fill script stays in one cluster slot.
func cacheKey(userID string) string {
	return "cart:{" + userID + "}"
}

func invalidationKey(userID string) string {
	return "cart:{" + userID + "}:invalidated"
}

// NoopCache never hits. It stands in when REDIS_ADDR is empty.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*domain.Cart, error) { return nil, ErrCacheMiss }
func (NoopCache) Set(context.Context, string, *domain.Cart) error   { return nil }
func (NoopCache) Delete(context.Context, string) error              { return nil }
