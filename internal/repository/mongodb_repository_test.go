package repository

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopline/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
)

func setupTestDB(t *testing.T) (*mongo.Database, func()) {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	require.NoError(t, CreateIndexes(ctx, db))

	cleanup := func() {
		_ = db.Client().Disconnect(ctx)
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return db, cleanup
}

func seedProduct(t *testing.T, repo ProductRepository, slug string, price int64, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		Name:   slug,
		Slug:   slug,
		SKU:    "SKU-" + slug,
		Price:  price,
		Stock:  stock,
		Active: true,
	}
	require.NoError(t, repo.CreateProduct(context.Background(), p))
	return p
}

func TestCartRepository(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMongoCartRepository(db)
	ctx := context.Background()

	t.Run("get missing cart", func(t *testing.T) {
		cart, err := repo.GetCart(ctx, "nobody")
		assert.ErrorIs(t, err, ErrCartNotFound)
		assert.Nil(t, cart)
	})

	t.Run("get or create is stable", func(t *testing.T) {
		first, err := repo.GetOrCreate(ctx, "buyer-1")
		require.NoError(t, err)
		second, err := repo.GetOrCreate(ctx, "buyer-1")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Empty(t, second.Items)
	})

	t.Run("concurrent get or create yields one cart", func(t *testing.T) {
		var wg sync.WaitGroup
		ids := make([]string, 8)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				cart, err := repo.GetOrCreate(ctx, "buyer-race")
				if assert.NoError(t, err) {
					ids[i] = cart.ID
				}
			}(i)
		}
		wg.Wait()

		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
	})

	t.Run("add merges quantity and keeps first price", func(t *testing.T) {
		require.NoError(t, repo.AddLine(ctx, "buyer-2", "p1", 2, 1000))
		require.NoError(t, repo.AddLine(ctx, "buyer-2", "p1", 3, 1200))

		cart, err := repo.GetCart(ctx, "buyer-2")
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, 5, cart.Items[0].Quantity)
		assert.Equal(t, int64(1000), cart.Items[0].PriceAtAdd)
	})

	t.Run("add rejects non-positive quantity", func(t *testing.T) {
		assert.ErrorIs(t, repo.AddLine(ctx, "buyer-2", "p1", 0, 1000), ErrInvalidQuantity)
	})

	t.Run("add rejects a merge that would overflow", func(t *testing.T) {
		assert.ErrorIs(t, repo.AddLine(ctx, "buyer-2", "p1", math.MaxInt, 1000), ErrInvalidQuantity)

		cart, err := repo.GetCart(ctx, "buyer-2")
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, 5, cart.Items[0].Quantity)
	})

	t.Run("set quantity", func(t *testing.T) {
		require.NoError(t, repo.SetLineQuantity(ctx, "buyer-2", "p1", 7))

		cart, err := repo.GetCart(ctx, "buyer-2")
		require.NoError(t, err)
		assert.Equal(t, 7, cart.Items[0].Quantity)

		assert.ErrorIs(t, repo.SetLineQuantity(ctx, "buyer-2", "missing", 1), ErrLineNotFound)
		assert.ErrorIs(t, repo.SetLineQuantity(ctx, "buyer-2", "p1", 0), ErrInvalidQuantity)
	})

	t.Run("remove and clear", func(t *testing.T) {
		require.NoError(t, repo.AddLine(ctx, "buyer-3", "p1", 1, 500))
		require.NoError(t, repo.AddLine(ctx, "buyer-3", "p2", 1, 700))
		require.NoError(t, repo.RemoveLine(ctx, "buyer-3", "p1"))

		cart, err := repo.GetCart(ctx, "buyer-3")
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, "p2", cart.Items[0].ProductID)

		require.NoError(t, repo.Clear(ctx, "buyer-3"))
		cart, err = repo.GetCart(ctx, "buyer-3")
		require.NoError(t, err)
		assert.True(t, cart.IsEmpty())

		assert.NoError(t, repo.Clear(ctx, "never-had-a-cart"))
		assert.ErrorIs(t, repo.RemoveLine(ctx, "never-had-a-cart", "p1"), ErrCartNotFound)
	})
}

func TestProductRepository_DecrementIfAvailable(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMongoProductRepository(db)
	ctx := context.Background()

	t.Run("decrements when sufficient", func(t *testing.T) {
		p := seedProduct(t, repo, "mug", 1000, 5)

		updated, err := repo.DecrementIfAvailable(ctx, p.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, updated.Stock)
	})

	t.Run("insufficient stock leaves product unchanged", func(t *testing.T) {
		p := seedProduct(t, repo, "lamp", 4000, 1)

		_, err := repo.DecrementIfAvailable(ctx, p.ID, 2)
		assert.ErrorIs(t, err, ErrInsufficientStock)

		got, err := repo.GetProduct(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Stock)
	})

	t.Run("missing product", func(t *testing.T) {
		_, err := repo.DecrementIfAvailable(ctx, "ghost", 1)
		assert.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("concurrent decrements never oversell", func(t *testing.T) {
		p := seedProduct(t, repo, "poster", 500, 10)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.DecrementIfAvailable(ctx, p.ID, 1); err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		got, err := repo.GetProduct(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, succeeded)
		assert.Equal(t, 0, got.Stock)
	})

	t.Run("validate", func(t *testing.T) {
		p := seedProduct(t, repo, "pen", 100, 3)

		ok, err := repo.Validate(ctx, p.ID, 3)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Validate(ctx, p.ID, 4)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.Validate(ctx, "ghost", 1)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.Validate(ctx, p.ID, -1)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
		assert.False(t, ok)
	})
}

func TestProductRepository_Catalog(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMongoProductRepository(db)
	ctx := context.Background()

	p := seedProduct(t, repo, "chair", 12000, 2)

	dup := &domain.Product{Name: "chair", Slug: "chair", SKU: "other", Price: 1}
	assert.ErrorIs(t, repo.CreateProduct(ctx, dup), ErrDuplicateProduct)

	inactive := false
	price := int64(9900)
	updated, err := repo.UpdateProduct(ctx, p.ID, domain.ProductUpdate{Price: &price, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, int64(9900), updated.Price)
	assert.False(t, updated.Active)

	_, err = repo.DecrementIfAvailable(ctx, p.ID, 1)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	seeded := &domain.Product{Name: "Desk", Slug: "desk", SKU: "DESK-1", Price: 30000, Stock: 4, Active: true}
	require.NoError(t, repo.UpsertBySlug(ctx, seeded))
	again := &domain.Product{Name: "Desk v2", Slug: "desk", SKU: "DESK-1", Price: 1, Stock: 100, Active: true}
	require.NoError(t, repo.UpsertBySlug(ctx, again))

	products, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Desk", products[0].Name)
	assert.Equal(t, 4, products[0].Stock)

	byIDs, err := repo.GetProducts(ctx, []string{p.ID, products[0].ID, "ghost"})
	require.NoError(t, err)
	assert.Len(t, byIDs, 2)
}

func TestOrderRepository(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMongoOrderRepository(db)
	ctx := context.Background()

	lines := []domain.OrderLine{
		{ProductID: "a", Quantity: 2, PriceAtPurchase: 1000},
		{ProductID: "b", Quantity: 1, PriceAtPurchase: 500},
	}

	_, err := repo.CreateOrder(ctx, "buyer-1", lines, 2400, "usd")
	assert.ErrorIs(t, err, ErrTotalMismatch)

	first, err := repo.CreateOrder(ctx, "buyer-1", lines, 2500, "usd")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, first.Status)

	time.Sleep(5 * time.Millisecond)
	second, err := repo.CreateOrder(ctx, "buyer-1", lines[:1], 2000, "usd")
	require.NoError(t, err)
	_, err = repo.CreateOrder(ctx, "buyer-2", lines[1:], 500, "usd")
	require.NoError(t, err)

	orders, err := repo.ListOrdersByUserID(ctx, "buyer-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)

	got, err := repo.GetOrderByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), got.Total)
	assert.Len(t, got.Items, 2)

	_, err = repo.GetOrderByID(ctx, "ghost")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	count, err := repo.CountOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	recent, err := repo.ListOrdersSince(ctx, first.CreatedAt.Add(time.Millisecond))
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestWishlistRepository(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMongoWishlistRepository(db)
	ctx := context.Background()

	_, err := repo.GetWishlist(ctx, "buyer-1")
	assert.ErrorIs(t, err, ErrWishlistNotFound)

	_, err = repo.AddProduct(ctx, "buyer-1", "p1")
	require.NoError(t, err)
	w, err := repo.AddProduct(ctx, "buyer-1", "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, w.ProductIDs)

	has, err := repo.HasProduct(ctx, "buyer-1", "p1")
	require.NoError(t, err)
	assert.True(t, has)

	w, err = repo.RemoveProduct(ctx, "buyer-1", "p1")
	require.NoError(t, err)
	assert.Empty(t, w.ProductIDs)

	has, err = repo.HasProduct(ctx, "buyer-1", "p1")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = repo.RemoveProduct(ctx, "buyer-2", "p1")
	assert.ErrorIs(t, err, ErrWishlistNotFound)
}

func TestOutboxRepository(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMongoOutboxRepository(db)
	ctx := context.Background()

	event := &domain.OutboxEvent{
		ID:          OrderEventID("order-1"),
		AggregateID: "order-1",
		EventType:   domain.EventTypeOrderCompleted,
		Payload:     []byte(`{"order_id":"order-1"}`),
	}
	require.NoError(t, repo.RecordEvent(ctx, event))
	require.NoError(t, repo.RecordEvent(ctx, event), "recording twice is a no-op")

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "order-1", events[0].AggregateID)

	missing, err := repo.MissingEvents(ctx, []string{"order-1", "order-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"order-2"}, missing)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, event.ID))

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
