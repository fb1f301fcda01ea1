package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopline/storefront/internal/domain"
)

type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	// OutcomeNoOp is a confirm that found an empty cart, typically a repeat of
	// a confirm that already committed. It is not an error.
	OutcomeNoOp Outcome = "noop"
)

type Settlement struct {
	Outcome  Outcome
	Order    *domain.Order
	Status   domain.CheckoutStatus
	Replayed bool
}

// Confirm settles the buyer's current cart into an order. Any failure before
// the order is written leaves the cart untouched.
//
// A non-empty idempotencyKey makes repeats of the same request return the
// first result; a repeat that arrives while the first is still running gets
// ErrConfirmInProgress.
func (o *Orchestrator) Confirm(ctx context.Context, buyerID, idempotencyKey string) (*Settlement, error) {
	started := time.Now()

	key := ""
	if idempotencyKey != "" && o.idem != nil {
		key = confirmKey(buyerID, idempotencyKey)
		rec, claimed, err := o.idem.Begin(ctx, key)
		switch {
		case err != nil:
			o.log.WarnContext(ctx, "idempotency store unavailable, confirming without key",
				slog.String("user_id", buyerID), slog.Any("error", err))
			key = ""
		case !claimed:
			s, err := o.replay(ctx, buyerID, rec)
			if err != nil {
				o.observe("confirm", outcomeOf(err), started)
				return nil, err
			}
			o.observe("confirm", "replayed", started)
			return s, nil
		}
	}

	s, err := o.confirm(ctx, buyerID)

	if key != "" {
		o.finishIdempotency(ctx, key, s, err)
	}

	if err != nil {
		o.observe("confirm", outcomeOf(err), started)
		o.log.InfoContext(ctx, "checkout confirm rejected",
			slog.String("user_id", buyerID),
			slog.Any("error", err))
		return nil, err
	}

	o.observe("confirm", string(s.Outcome), started)
	return s, nil
}

func (o *Orchestrator) confirm(ctx context.Context, buyerID string) (*Settlement, error) {
	a := &attempt{buyerID: buyerID, status: domain.CheckoutStatusAwaitingConfirmation}

	// The cart may have changed since authorization; it is re-read, not trusted.
	cart, err := o.loadCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		o.log.InfoContext(ctx, "confirm on empty cart, nothing to settle", slog.String("user_id", buyerID))
		return &Settlement{Outcome: OutcomeNoOp, Status: a.status}, nil
	}

	if err := a.advance(domain.CheckoutStatusSettling); err != nil {
		return nil, err
	}

	order, err := o.settle(ctx, a, cart)
	if err != nil {
		_ = a.advance(domain.CheckoutStatusRejected)
		return nil, err
	}

	if err := a.advance(domain.CheckoutStatusCommitted); err != nil {
		return nil, err
	}
	return &Settlement{Outcome: OutcomeCommitted, Order: order, Status: a.status}, nil
}

func (o *Orchestrator) settle(ctx context.Context, a *attempt, cart *domain.Cart) (*domain.Order, error) {
	lines, err := o.resolveLines(ctx, cart)
	if err != nil {
		return nil, err
	}

	if err := o.validateStock(ctx, lines); err != nil {
		return nil, err
	}

	// From the first decrement on, a caller hang-up must not strand stock
	// without an order.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.settleTimeout)
	defer cancel()

	if err := o.decrementStock(settleCtx, a, lines); err != nil {
		return nil, err
	}

	order, err := o.createOrder(settleCtx, a, cart)
	if err != nil {
		return nil, err
	}

	o.afterCommit(settleCtx, a, order)
	return order, nil
}

func (o *Orchestrator) replay(ctx context.Context, buyerID string, rec IdempotencyRecord) (*Settlement, error) {
	switch {
	case rec.Pending:
		return nil, ErrConfirmInProgress
	case rec.NoOp:
		return &Settlement{Outcome: OutcomeNoOp, Status: domain.CheckoutStatusAwaitingConfirmation, Replayed: true}, nil
	}

	order, err := o.orders.GetOrderByID(ctx, rec.OrderID)
	if err != nil {
		return nil, storeError("load replayed order", err)
	}
	if order.UserID != buyerID {
		return nil, storeError("load replayed order", errors.New("order belongs to another buyer"))
	}
	return &Settlement{Outcome: OutcomeCommitted, Order: order, Status: domain.CheckoutStatusCommitted, Replayed: true}, nil
}

// finishIdempotency stores the result, or frees the key after a failure so
// the buyer can retry once the cart is fixed.
func (o *Orchestrator) finishIdempotency(ctx context.Context, key string, s *Settlement, confirmErr error) {
	ctx = context.WithoutCancel(ctx)

	var err error
	switch {
	case confirmErr != nil:
		err = o.idem.Abort(ctx, key)
	case s.Outcome == OutcomeNoOp:
		err = o.idem.Complete(ctx, key, IdempotencyRecord{NoOp: true})
	default:
		err = o.idem.Complete(ctx, key, IdempotencyRecord{OrderID: s.Order.ID})
	}
	if err != nil {
		o.log.WarnContext(ctx, "failed to finish idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

func confirmKey(buyerID, idempotencyKey string) string {
	return "checkout:confirm:" + buyerID + ":" + idempotencyKey
}
