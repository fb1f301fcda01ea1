// Package memory keeps every storefront store in process. It backs
// STORAGE_BACKEND=memory and the checkout tests, and honors the same
// contracts as the MongoDB repositories.
package memory

import (
	"sync"
	"time"

	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/repository"
)

const (
	// CartTTL matches the TTL index on the carts collection.
	CartTTL = 90 * 24 * time.Hour

	// CleanupInterval is how often idle carts are swept.
	CleanupInterval = time.Hour
)

var (
	_ repository.CartRepository     = (*MemoryStore)(nil)
	_ repository.ProductRepository  = (*MemoryStore)(nil)
	_ repository.OrderRepository    = (*MemoryStore)(nil)
	_ repository.WishlistRepository = (*MemoryStore)(nil)
	_ repository.OutboxRepository   = (*MemoryStore)(nil)
)

// MemoryStore implements the cart, product, order, wishlist and outbox
// repositories. One lock guards all of them, which makes every operation
// atomic, including the conditional stock decrement.
type MemoryStore struct {
	mu        sync.RWMutex
	carts     map[string]*domain.Cart     // userID -> cart
	products  map[string]*domain.Product  // productID -> product
	orders    []*domain.Order             // insertion order
	wishlists map[string]*domain.Wishlist // userID -> wishlist
	outbox    map[string]*domain.OutboxEvent
	outboxSeq []string

	now func() time.Time

	stopCleanup chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		carts:       make(map[string]*domain.Cart),
		products:    make(map[string]*domain.Product),
		wishlists:   make(map[string]*domain.Wishlist),
		outbox:      make(map[string]*domain.OutboxEvent),
		now:         func() time.Time { return time.Now().UTC() },
		stopCleanup: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expireCarts()
		case <-s.stopCleanup:
			return
		}
	}
}

// expireCarts drops carts untouched for longer than CartTTL.
func (s *MemoryStore) expireCarts() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-CartTTL)
	for userID, cart := range s.carts {
		if cart.UpdatedAt.Before(cutoff) {
			delete(s.carts, userID)
		}
	}
}

// Close stops the background cleanup and waits for it to finish.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopCleanup) })
	s.wg.Wait()
	return nil
}
