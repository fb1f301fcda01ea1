package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopline/storefront/internal/domain"
)

type OrderService interface {
	ListForBuyer(ctx context.Context, userID string) ([]*domain.Order, error)
	GetForBuyer(ctx context.Context, userID, orderID string) (*domain.Order, error)
	Count(ctx context.Context) (int64, error)
}

type OrdersHandler struct {
	orders OrderService
}

func NewOrdersHandler(orders OrderService) *OrdersHandler {
	return &OrdersHandler{orders: orders}
}

type OrderCountResponse struct {
	Count int64 `json:"count"`
}

// GET /api/v1/orders
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListForBuyer(r.Context(), getUserID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := OrdersResponse{Orders: make([]OrderResponse, len(orders))}
	for i, o := range orders {
		resp.Orders[i] = toOrderResponse(o)
	}
	respondJSON(w, http.StatusOK, resp)
}

// GET /api/v1/orders/{id}
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetForBuyer(r.Context(), getUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

// GET /api/v1/admin/orders/count
func (h *OrdersHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.orders.Count(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, OrderCountResponse{Count: n})
}
