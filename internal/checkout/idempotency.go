package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultIdempotencyTTL = 24 * time.Hour
	// DefaultPendingTTL bounds how long a claim survives a confirm that died
	// before Complete or Abort. It must outlast the payment and settle timeouts.
	DefaultPendingTTL = 2 * time.Minute

	pendingMarker = "pending"
	noopMarker    = "noop"
	orderPrefix   = "order:"
)

// IdempotencyRecord is what a previous confirm with the same key left behind.
type IdempotencyRecord struct {
	Pending bool
	NoOp    bool
	OrderID string
}

// IdempotencyStore deduplicates confirms that carry an Idempotency-Key.
// Begin claims the key and reports started=true, or returns the record of
// the request that claimed it first.
type IdempotencyStore interface {
	Begin(ctx context.Context, key string) (rec IdempotencyRecord, started bool, err error)
	Complete(ctx context.Context, key string, rec IdempotencyRecord) error
	Abort(ctx context.Context, key string) error
}

// RedisIdempotencyStore keeps a claim for pendingTTL and a finished result
// for ttl.
type RedisIdempotencyStore struct {
	rdb        redis.Cmdable
	ttl        time.Duration
	pendingTTL time.Duration
}

type RedisIdempotencyOption func(*RedisIdempotencyStore)

func WithPendingTTL(d time.Duration) RedisIdempotencyOption {
	return func(s *RedisIdempotencyStore) {
		if d > 0 {
			s.pendingTTL = d
		}
	}
}

func NewRedisIdempotencyStore(rdb redis.Cmdable, ttl time.Duration, opts ...RedisIdempotencyOption) *RedisIdempotencyStore {
	s := &RedisIdempotencyStore{rdb: rdb, ttl: ttl, pendingTTL: DefaultPendingTTL}
	for _, opt := range opts {
		opt(s)
	}
	if s.pendingTTL > ttl {
		s.pendingTTL = ttl
	}
	return s
}

func (s *RedisIdempotencyStore) Begin(ctx context.Context, key string) (IdempotencyRecord, bool, error) {
	// Two rounds cover a key deleted by Abort between SetNX and Get.
	for i := 0; i < 2; i++ {
		ok, err := s.rdb.SetNX(ctx, key, pendingMarker, s.pendingTTL).Result()
		if err != nil {
			return IdempotencyRecord{}, false, fmt.Errorf("claim idempotency key: %w", err)
		}
		if ok {
			return IdempotencyRecord{}, true, nil
		}

		val, err := s.rdb.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return IdempotencyRecord{}, false, fmt.Errorf("read idempotency key: %w", err)
		}
		return decodeRecord(val), false, nil
	}
	return IdempotencyRecord{Pending: true}, false, nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, rec IdempotencyRecord) error {
	if err := s.rdb.Set(ctx, key, encodeRecord(rec), s.ttl).Err(); err != nil {
		return fmt.Errorf("store idempotency result: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Abort(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func encodeRecord(rec IdempotencyRecord) string {
	switch {
	case rec.OrderID != "":
		return orderPrefix + rec.OrderID
	case rec.NoOp:
		return noopMarker
	default:
		return pendingMarker
	}
}

func decodeRecord(val string) IdempotencyRecord {
	switch {
	case strings.HasPrefix(val, orderPrefix):
		return IdempotencyRecord{OrderID: strings.TrimPrefix(val, orderPrefix)}
	case val == noopMarker:
		return IdempotencyRecord{NoOp: true}
	default:
		return IdempotencyRecord{Pending: true}
	}
}

// MemoryIdempotencyStore is the in-process variant used with the memory
// backend. Entries never expire.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]IdempotencyRecord
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{records: make(map[string]IdempotencyRecord)}
}

func (s *MemoryIdempotencyStore) Begin(_ context.Context, key string) (IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[key]; ok {
		return rec, false, nil
	}
	s.records[key] = IdempotencyRecord{Pending: true}
	return IdempotencyRecord{}, true, nil
}

func (s *MemoryIdempotencyStore) Complete(_ context.Context, key string, rec IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Pending = false
	s.records[key] = rec
	return nil
}

func (s *MemoryIdempotencyStore) Abort(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}
