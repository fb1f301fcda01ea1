package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/metrics"
	"github.com/shopline/storefront/internal/payment"
	"github.com/shopline/storefront/internal/repository"
	"github.com/shopline/storefront/internal/store/memory"
	"github.com/stretchr/testify/require"
)

// MockGateway records authorization requests.
type MockGateway struct {
	mu       sync.Mutex
	Requests []payment.AuthorizationRequest
	Err      error
}

func (m *MockGateway) CreateAuthorization(_ context.Context, req payment.AuthorizationRequest) (*payment.Authorization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return &payment.Authorization{ClientSecret: "pi_test_secret", Reference: "pi_test"}, nil
}

// MockCache records deletions.
type MockCache struct {
	mu      sync.Mutex
	Deleted []string
}

func (m *MockCache) Get(context.Context, string) (*domain.Cart, error) {
	return nil, errors.New("unused")
}
func (m *MockCache) Set(context.Context, string, *domain.Cart) error { return nil }
func (m *MockCache) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, userID)
	return nil
}

// racingInventory runs beforeDecrement ahead of every decrement, to simulate
// a concurrent buyer winning stock between the validate and decrement passes.
type racingInventory struct {
	Inventory
	beforeDecrement func(productID string)
}

func (r *racingInventory) DecrementIfAvailable(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	if r.beforeDecrement != nil {
		r.beforeDecrement(productID)
	}
	return r.Inventory.DecrementIfAvailable(ctx, productID, quantity)
}

// failingOrders wraps an order store whose CreateOrder always fails.
type failingOrders struct {
	*memory.MemoryStore
}

func (failingOrders) CreateOrder(context.Context, string, []domain.OrderLine, int64, string) (*domain.Order, error) {
	return nil, errors.New("connection refused")
}

// failingClear wraps a cart store whose Clear always fails.
type failingClear struct {
	*memory.MemoryStore
}

func (failingClear) Clear(context.Context, string) error {
	return errors.New("write conflict")
}

// storedCart serves a fixed cart, standing in for a document written around
// the cart service's line checks.
type storedCart struct {
	*memory.MemoryStore
	cart *domain.Cart
}

func (s storedCart) GetCart(context.Context, string) (*domain.Cart, error) {
	return s.cart.Clone(), nil
}

type fixture struct {
	store   *memory.MemoryStore
	gateway *MockGateway
	cache   *MockCache
	metrics *metrics.Metrics
	idem    *MemoryIdempotencyStore
	orch    *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		store:   store,
		gateway: &MockGateway{},
		cache:   &MockCache{},
		metrics: metrics.New(),
		idem:    NewMemoryIdempotencyStore(),
	}
	f.orch = f.build(store, store, store)
	return f
}

func (f *fixture) build(carts repository.CartRepository, inv Inventory, orders repository.OrderRepository) *Orchestrator {
	return NewOrchestrator(carts, inv, orders, f.gateway,
		slog.New(slog.NewTextHandler(io.Discard, nil)), f.metrics,
		WithIdempotencyStore(f.idem),
		WithOutbox(f.store),
		WithCartCache(f.cache),
		WithCurrency("usd"),
	)
}

func (f *fixture) product(t *testing.T, slug string, price int64, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{Name: slug, Slug: slug, SKU: "SKU-" + slug, Price: price, Stock: stock, Active: true}
	require.NoError(t, f.store.CreateProduct(context.Background(), p))
	return p
}

func (f *fixture) add(t *testing.T, buyerID string, p *domain.Product, qty int) {
	t.Helper()
	require.NoError(t, f.store.AddLine(context.Background(), buyerID, p.ID, qty, p.Price))
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}
