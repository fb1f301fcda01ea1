package cache

import (
	"context"
	"errors"

	"github.com/shopline/storefront/internal/domain"
)

// CartCache holds read-side copies of carts. The store stays authoritative:
// every cart mutation deletes the entry.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
