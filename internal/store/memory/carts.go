package memory

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/repository"
)

func (s *MemoryStore) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, ok := s.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return cart.Clone(), nil
}

func (s *MemoryStore) GetOrCreate(_ context.Context, userID string) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getOrCreateLocked(userID).Clone(), nil
}

func (s *MemoryStore) getOrCreateLocked(userID string) *domain.Cart {
	if cart, ok := s.carts[userID]; ok {
		return cart
	}
	now := s.now()
	cart := &domain.Cart{
		ID:        uuid.NewString(),
		UserID:    userID,
		Items:     []domain.CartLine{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.carts[userID] = cart
	return cart
}

func (s *MemoryStore) AddLine(_ context.Context, userID, productID string, quantity int, unitPrice int64) error {
	if quantity <= 0 {
		return repository.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.getOrCreateLocked(userID)
	now := s.now()

	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			if cart.Items[i].Quantity > math.MaxInt-quantity {
				return repository.ErrInvalidQuantity
			}
			cart.Items[i].Quantity += quantity
			cart.UpdatedAt = now
			return nil
		}
	}

	cart.UpdatedAt = now

	cart.Items = append(cart.Items, domain.CartLine{
		ProductID:  productID,
		Quantity:   quantity,
		PriceAtAdd: unitPrice,
		AddedAt:    now,
	})
	return nil
}

func (s *MemoryStore) SetLineQuantity(_ context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return repository.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[userID]
	if !ok {
		return repository.ErrLineNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity = quantity
			cart.UpdatedAt = s.now()
			return nil
		}
	}
	return repository.ErrLineNotFound
}

func (s *MemoryStore) RemoveLine(_ context.Context, userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[userID]
	if !ok {
		return repository.ErrCartNotFound
	}

	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	cart.Items = kept
	cart.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cart, ok := s.carts[userID]; ok {
		cart.Items = []domain.CartLine{}
		cart.UpdatedAt = s.now()
	}
	return nil
}
