// Package checkout turns a buyer's cart into a payment authorization and, on
// confirmation, into a committed order with decremented stock.
//
// The stores involved share no transaction. Confirm validates every line,
// then decrements every line, then writes the order and clears the cart. The
// atomic conditional decrement is the only guard against overselling; a
// decrement that loses a race after earlier lines succeeded leaves those
// earlier decrements in place.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopline/storefront/internal/cache"
	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/metrics"
	"github.com/shopline/storefront/internal/payment"
	"github.com/shopline/storefront/internal/repository"
)

const (
	defaultCurrency       = "usd"
	defaultPaymentTimeout = 10 * time.Second
	defaultSettleTimeout  = 15 * time.Second
)

// Inventory is the stock side of the catalog the orchestrator needs.
type Inventory interface {
	repository.StockStore
	GetProducts(ctx context.Context, ids []string) ([]*domain.Product, error)
}

type Orchestrator struct {
	carts     repository.CartRepository
	inventory Inventory
	orders    repository.OrderRepository
	gateway   payment.Gateway

	idem      IdempotencyStore
	outbox    repository.OutboxRepository
	cartCache cache.CartCache

	currency       string
	paymentTimeout time.Duration
	settleTimeout  time.Duration

	log     *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Orchestrator)

func WithIdempotencyStore(s IdempotencyStore) Option {
	return func(o *Orchestrator) { o.idem = s }
}

// WithOutbox makes committed orders record an order.completed event.
func WithOutbox(r repository.OutboxRepository) Option {
	return func(o *Orchestrator) { o.outbox = r }
}

// WithCartCache drops the buyer's cached cart after the cart is cleared.
func WithCartCache(c cache.CartCache) Option {
	return func(o *Orchestrator) { o.cartCache = c }
}

func WithCurrency(currency string) Option {
	return func(o *Orchestrator) { o.currency = currency }
}

func WithPaymentTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.paymentTimeout = d }
}

// WithSettleTimeout bounds the part of confirm that runs detached from the
// caller's context, from the first decrement to the cart clear.
func WithSettleTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.settleTimeout = d }
}

func NewOrchestrator(
	carts repository.CartRepository,
	inventory Inventory,
	orders repository.OrderRepository,
	gateway payment.Gateway,
	log *slog.Logger,
	m *metrics.Metrics,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		carts:          carts,
		inventory:      inventory,
		orders:         orders,
		gateway:        gateway,
		currency:       defaultCurrency,
		paymentTimeout: defaultPaymentTimeout,
		settleTimeout:  defaultSettleTimeout,
		log:            log.With(slog.String("component", "checkout")),
		metrics:        m,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// attempt tracks the state of one checkout attempt.
type attempt struct {
	buyerID string
	status  domain.CheckoutStatus
}

func (a *attempt) advance(to domain.CheckoutStatus) error {
	if !domain.CanTransitionTo(a.status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.status, to)
	}
	a.status = to
	return nil
}

func (o *Orchestrator) observe(phase, outcome string, started time.Time) {
	o.metrics.CheckoutAttempts.WithLabelValues(phase, outcome).Inc()
	o.metrics.CheckoutDuration.WithLabelValues(phase).Observe(time.Since(started).Seconds())
}

// loadCart returns the buyer's cart, or an empty cart when none exists.
func (o *Orchestrator) loadCart(ctx context.Context, buyerID string) (*domain.Cart, error) {
	cart, err := o.carts.GetCart(ctx, buyerID)
	if err == nil {
		return cart, nil
	}
	if errors.Is(err, repository.ErrCartNotFound) {
		return &domain.Cart{UserID: buyerID}, nil
	}
	return nil, storeError("load cart", err)
}
