package http

import (
	"context"
	"net/http"

	"github.com/shopline/storefront/internal/checkout"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type CheckoutService interface {
	CreateAuthorization(ctx context.Context, buyerID, idempotencyKey string) (*checkout.Authorization, error)
	Confirm(ctx context.Context, buyerID, idempotencyKey string) (*checkout.Settlement, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
}

func NewCheckoutHandler(svc CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: svc}
}

type AuthorizationResponseDTO struct {
	ClientSecret string `json:"client_secret"`
	Amount       string `json:"amount"`
	AmountMinor  int64  `json:"amount_minor"`
	Currency     string `json:"currency"`
}

type ConfirmResponseDTO struct {
	Status   string         `json:"status"`
	Order    *OrderResponse `json:"order,omitempty"`
	Replayed bool           `json:"replayed,omitempty"`
}

// POST /api/v1/checkout/authorize
func (h *CheckoutHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	auth, err := h.checkout.CreateAuthorization(r.Context(), getUserID(r.Context()), r.Header.Get(HeaderIdempotencyKey))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, AuthorizationResponseDTO{
		ClientSecret: auth.ClientSecret,
		Amount:       formatMoney(auth.Amount),
		AmountMinor:  auth.Amount,
		Currency:     auth.Currency,
	})
}

// POST /api/v1/checkout/confirm
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	s, err := h.checkout.Confirm(r.Context(), getUserID(r.Context()), r.Header.Get(HeaderIdempotencyKey))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if s.Outcome == checkout.OutcomeNoOp {
		respondJSON(w, http.StatusOK, ConfirmResponseDTO{Status: string(s.Outcome), Replayed: s.Replayed})
		return
	}

	order := toOrderResponse(s.Order)
	respondJSON(w, http.StatusCreated, ConfirmResponseDTO{
		Status:   string(s.Outcome),
		Order:    &order,
		Replayed: s.Replayed,
	})
}
