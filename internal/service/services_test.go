package service

import (
	"context"
	"testing"

	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/repository"
	"github.com/shopline/storefront/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *memory.MemoryStore {
	store := memory.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	return store
}

func TestWishlistService(t *testing.T) {
	store := newStore(t)
	sut := NewWishlistService(store, store)
	ctx := context.Background()
	p := seedProduct(t, store, "mug", 1000, 1)

	w, err := sut.GetWishlist(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, w.ProductIDs)
	assert.Empty(t, w.ProductIDs)

	_, err = sut.AddProduct(ctx, "u1", "ghost")
	assert.ErrorIs(t, err, repository.ErrProductNotFound)

	w, err = sut.AddProduct(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, w.ProductIDs)

	has, err := sut.Contains(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.True(t, has)

	w, err = sut.RemoveProduct(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.Empty(t, w.ProductIDs)

	w, err = sut.RemoveProduct(ctx, "nobody", p.ID)
	require.NoError(t, err)
	assert.Empty(t, w.ProductIDs)
}

func TestOrderService_OwnerCheck(t *testing.T) {
	store := newStore(t)
	sut := NewOrderService(store)
	ctx := context.Background()
	lines := []domain.OrderLine{{ProductID: "p1", Quantity: 1, PriceAtPurchase: 500}}

	order, err := store.CreateOrder(ctx, "u1", lines, 500, "usd")
	require.NoError(t, err)

	got, err := sut.GetForBuyer(ctx, "u1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = sut.GetForBuyer(ctx, "u2", order.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = sut.GetForBuyer(ctx, "u1", "ghost")
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	list, err := sut.ListForBuyer(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, list)

	count, err := sut.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCatalogService(t *testing.T) {
	store := newStore(t)
	sut := NewCatalogService(store)
	ctx := context.Background()

	require.NoError(t, sut.Seed(ctx, DemoCatalog()))
	require.NoError(t, sut.Seed(ctx, DemoCatalog()))

	products, err := sut.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, len(DemoCatalog()))

	created, err := sut.CreateProduct(ctx, &domain.Product{Name: "Poster", Slug: "poster", SKU: "PST-1", Price: 900, Stock: 3, Active: true})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	inactive := false
	_, err = sut.UpdateProduct(ctx, created.ID, domain.ProductUpdate{Active: &inactive})
	require.NoError(t, err)

	_, err = sut.GetProduct(ctx, created.ID)
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
}
