package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/repository"
)

func (s *MemoryStore) GetWishlist(_ context.Context, userID string) (*domain.Wishlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wishlists[userID]
	if !ok {
		return nil, repository.ErrWishlistNotFound
	}
	return copyWishlist(w), nil
}

func (s *MemoryStore) AddProduct(_ context.Context, userID, productID string) (*domain.Wishlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.wishlists[userID]
	if !ok {
		w = &domain.Wishlist{
			ID:         uuid.NewString(),
			UserID:     userID,
			ProductIDs: []string{},
			CreatedAt:  now,
		}
		s.wishlists[userID] = w
	}
	if !w.Has(productID) {
		w.ProductIDs = append(w.ProductIDs, productID)
	}
	w.UpdatedAt = now

	return copyWishlist(w), nil
}

func (s *MemoryStore) RemoveProduct(_ context.Context, userID, productID string) (*domain.Wishlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wishlists[userID]
	if !ok {
		return nil, repository.ErrWishlistNotFound
	}

	kept := w.ProductIDs[:0]
	for _, id := range w.ProductIDs {
		if id != productID {
			kept = append(kept, id)
		}
	}
	w.ProductIDs = kept
	w.UpdatedAt = s.now()

	return copyWishlist(w), nil
}

func (s *MemoryStore) HasProduct(_ context.Context, userID, productID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wishlists[userID].Has(productID), nil
}

func copyWishlist(w *domain.Wishlist) *domain.Wishlist {
	cp := *w
	cp.ProductIDs = append([]string{}, w.ProductIDs...)
	return &cp
}
