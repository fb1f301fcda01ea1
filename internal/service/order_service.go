package service

import (
	"context"

	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/repository"
)

// OrderService is the read side of orders. Orders are only ever created by
// checkout.
type OrderService struct {
	orders repository.OrderRepository
}

func NewOrderService(orders repository.OrderRepository) *OrderService {
	return &OrderService{orders: orders}
}

func (s *OrderService) ListForBuyer(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.orders.ListOrdersByUserID(ctx, userID)
}

func (s *OrderService) GetForBuyer(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *OrderService) Count(ctx context.Context) (int64, error) {
	return s.orders.CountOrders(ctx)
}
