package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/repository"
)

func (s *MemoryStore) CreateOrder(_ context.Context, userID string, lines []domain.OrderLine, total int64, currency string) (*domain.Order, error) {
	if err := repository.ValidateOrder(lines, total); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order := &domain.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Items:     append([]domain.OrderLine(nil), lines...),
		Total:     total,
		Currency:  currency,
		Status:    domain.OrderStatusCompleted,
		CreatedAt: s.now(),
	}
	s.orders = append(s.orders, order)

	return copyOrder(order), nil
}

func (s *MemoryStore) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, order := range s.orders {
		if order.ID == id {
			return copyOrder(order), nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

// ListOrdersByUserID returns the newest first; orders created in the same
// instant keep reverse insertion order.
func (s *MemoryStore) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.Order{}
	for i := len(s.orders) - 1; i >= 0; i-- {
		if s.orders[i].UserID == userID {
			result = append(result, copyOrder(s.orders[i]))
		}
	}
	return result, nil
}

func (s *MemoryStore) ListOrdersSince(_ context.Context, since time.Time) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.Order{}
	for _, order := range s.orders {
		if !order.CreatedAt.Before(since) {
			result = append(result, copyOrder(order))
		}
	}
	return result, nil
}

func (s *MemoryStore) CountOrders(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.orders)), nil
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderLine(nil), o.Items...)
	return &cp
}
