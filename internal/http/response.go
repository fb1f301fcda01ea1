package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopline/storefront/internal/checkout"
	"github.com/shopline/storefront/internal/repository"
	"github.com/shopline/storefront/internal/service"
)

const maxRequestBodySize = 1 << 20 // 1MB

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// handleServiceError is the one place errors become status codes.
func handleServiceError(w http.ResponseWriter, err error) {
	var (
		stockErr   *checkout.StockError
		paymentErr *checkout.PaymentError
	)

	switch {
	case errors.As(err, &stockErr):
		respondJSON(w, http.StatusConflict, ErrorResponse{
			Error:   stockErr.Error(),
			Code:    "insufficient_stock",
			Details: stockErr.ProductID,
		})
	case errors.As(err, &paymentErr):
		respondError(w, http.StatusBadGateway, "payment_provider_error", paymentErr.Message)
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, checkout.ErrInvalidTotal):
		respondError(w, http.StatusUnprocessableEntity, "invalid_total", err.Error())
	case errors.Is(err, repository.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, repository.ErrInvalidProduct):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, repository.ErrLineNotFound),
		errors.Is(err, repository.ErrCartNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, repository.ErrInsufficientStock):
		respondError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, service.ErrProductUnavailable):
		respondError(w, http.StatusConflict, "product_unavailable", err.Error())
	case errors.Is(err, repository.ErrDuplicateProduct):
		respondError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, checkout.ErrConfirmInProgress):
		respondError(w, http.StatusConflict, "confirm_in_progress", err.Error())
	case errors.Is(err, service.ErrForbidden):
		respondError(w, http.StatusForbidden, "permission_denied", err.Error())
	case errors.Is(err, checkout.ErrPaymentProvider):
		respondError(w, http.StatusBadGateway, "payment_provider_error", err.Error())
	case errors.Is(err, checkout.ErrStoreUnavailable):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "store unavailable, try again")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		slog.Error("unhandled service error", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
