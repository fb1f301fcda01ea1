package checkout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopline/storefront/internal/repository"
)

var (
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrInvalidTotal      = errors.New("cart total must be greater than 0")
	ErrInsufficientStock = repository.ErrInsufficientStock
	ErrInvalidQuantity   = repository.ErrInvalidQuantity
	ErrPaymentProvider   = errors.New("payment provider error")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrConfirmInProgress = errors.New("a confirmation with this idempotency key is already in progress")
	ErrIllegalTransition = errors.New("illegal transition of checkout status")
)

// StockError names the line that could not be covered. Partial is set when
// earlier lines of the same confirm were already decremented; those are not
// rolled back.
type StockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Partial     bool
	Decremented []string
}

func (e *StockError) Error() string {
	name := e.ProductID
	if e.ProductName != "" {
		name = fmt.Sprintf("%s (%s)", e.ProductName, e.ProductID)
	}
	msg := fmt.Sprintf("insufficient stock for product %s: requested %d", name, e.Requested)
	if e.Partial {
		msg += "; stock already decremented for " + strings.Join(e.Decremented, ", ")
	}
	return msg
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// PaymentError passes the provider's message through.
type PaymentError struct {
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	return "payment provider error: " + e.Message
}

func (e *PaymentError) Unwrap() []error {
	return []error{ErrPaymentProvider, e.Err}
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
