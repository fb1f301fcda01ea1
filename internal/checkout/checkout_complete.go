package checkout

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/repository"
)

// createOrder snapshots the cart lines, priceAtAdd becoming priceAtPurchase,
// with the total recomputed here.
func (o *Orchestrator) createOrder(ctx context.Context, a *attempt, cart *domain.Cart) (*domain.Order, error) {
	lines, total := domain.OrderLinesFromCart(cart.Items)

	order, err := o.orders.CreateOrder(ctx, a.buyerID, lines, total, o.currency)
	if err != nil {
		o.log.ErrorContext(ctx, "order write failed after stock was decremented",
			slog.String("user_id", a.buyerID),
			slog.Int64("total", total),
			slog.Any("error", err))
		return nil, storeError("create order", err)
	}

	o.log.InfoContext(ctx, "order committed",
		slog.String("user_id", a.buyerID),
		slog.String("order_id", order.ID),
		slog.Int64("total", order.Total),
		slog.Int("lines", len(order.Items)))
	return order, nil
}

// afterCommit runs the best-effort steps. The order exists; none of these
// failures is reported to the caller.
func (o *Orchestrator) afterCommit(ctx context.Context, a *attempt, order *domain.Order) {
	if err := o.carts.Clear(ctx, a.buyerID); err != nil {
		o.log.WarnContext(ctx, "failed to clear cart after commit",
			slog.String("user_id", a.buyerID),
			slog.String("order_id", order.ID),
			slog.Any("error", err))
	}

	if o.cartCache != nil {
		if err := o.cartCache.Delete(ctx, a.buyerID); err != nil {
			o.log.WarnContext(ctx, "failed to invalidate cart cache", slog.String("user_id", a.buyerID), slog.Any("error", err))
		}
	}

	if o.outbox != nil {
		if err := o.recordOrderEvent(ctx, order); err != nil {
			// the publisher's recovery pass re-creates it
			o.log.WarnContext(ctx, "failed to record order event",
				slog.String("order_id", order.ID),
				slog.Any("error", err))
		}
	}
}

func (o *Orchestrator) recordOrderEvent(ctx context.Context, order *domain.Order) error {
	event, err := NewOrderCompletedOutboxEvent(order)
	if err != nil {
		return err
	}
	return o.outbox.RecordEvent(ctx, event)
}

// NewOrderCompletedOutboxEvent builds the outbox entry for a committed order.
// Its ID is derived from the order, so recording it twice is harmless.
func NewOrderCompletedOutboxEvent(order *domain.Order) (*domain.OutboxEvent, error) {
	payload, err := json.Marshal(domain.NewOrderCompletedEvent(order))
	if err != nil {
		return nil, err
	}
	return &domain.OutboxEvent{
		ID:          repository.OrderEventID(order.ID),
		AggregateID: order.ID,
		EventType:   domain.EventTypeOrderCompleted,
		Payload:     payload,
		CreatedAt:   order.CreatedAt,
	}, nil
}
