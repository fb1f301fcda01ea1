package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/payment"
)

const metadataBuyerKey = "userId"

// Authorization is what the client needs to complete payment.
type Authorization struct {
	ClientSecret string
	Amount       int64
	Currency     string
}

// CreateAuthorization requests a payment authorization for the cart's total.
// It reads the cart and calls the provider; nothing is written, so callers
// may retry it freely. idempotencyKey, if set, is forwarded to the provider.
func (o *Orchestrator) CreateAuthorization(ctx context.Context, buyerID, idempotencyKey string) (*Authorization, error) {
	started := time.Now()
	a := &attempt{buyerID: buyerID, status: domain.CheckoutStatusAuthorizing}

	auth, err := o.authorize(ctx, a, idempotencyKey)
	if err != nil {
		_ = a.advance(domain.CheckoutStatusRejected)
		o.observe("authorize", outcomeOf(err), started)
		o.log.InfoContext(ctx, "checkout authorization rejected",
			slog.String("user_id", buyerID),
			slog.String("status", a.status.String()),
			slog.Any("error", err))
		return nil, err
	}

	if err := a.advance(domain.CheckoutStatusAwaitingConfirmation); err != nil {
		return nil, err
	}
	o.observe("authorize", "authorized", started)
	o.log.InfoContext(ctx, "checkout authorized",
		slog.String("user_id", buyerID),
		slog.Int64("amount", auth.Amount),
		slog.String("currency", auth.Currency))
	return auth, nil
}

func (o *Orchestrator) authorize(ctx context.Context, a *attempt, idempotencyKey string) (*Authorization, error) {
	cart, err := o.loadCart(ctx, a.buyerID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}
	for _, item := range cart.Items {
		if err := checkQuantity(item); err != nil {
			return nil, err
		}
	}

	// Frozen prices only; the client never supplies an amount.
	total := cart.Total()
	if total <= 0 {
		return nil, ErrInvalidTotal
	}

	paymentCtx, cancel := context.WithTimeout(ctx, o.paymentTimeout)
	defer cancel()

	result, err := o.gateway.CreateAuthorization(paymentCtx, payment.AuthorizationRequest{
		AmountMinor:    total,
		Currency:       o.currency,
		Metadata:       map[string]string{metadataBuyerKey: a.buyerID},
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, &PaymentError{Message: providerMessage(err), Err: err}
	}

	return &Authorization{
		ClientSecret: result.ClientSecret,
		Amount:       total,
		Currency:     o.currency,
	}, nil
}

func providerMessage(err error) string {
	var pe *payment.ProviderError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}

func outcomeOf(err error) string {
	var stockErr *StockError
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrInvalidTotal):
		return "invalid_total"
	case errors.As(err, &stockErr) && stockErr.Partial:
		return "partial_decrement"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrPaymentProvider):
		return "payment_error"
	case errors.Is(err, ErrConfirmInProgress):
		return "in_progress"
	default:
		return "error"
	}
}
