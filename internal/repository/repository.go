package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopline/storefront/internal/domain"
)

var (
	ErrCartNotFound      = errors.New("cart not found")
	ErrLineNotFound      = errors.New("item not found in cart")
	ErrInvalidQuantity   = errors.New("quantity must be greater than 0")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateProduct  = errors.New("product with this slug or sku already exists")
	ErrInvalidProduct    = errors.New("invalid product")
	ErrOrderNotFound     = errors.New("order not found")
	ErrTotalMismatch     = errors.New("order total does not match its lines")
	ErrWishlistNotFound  = errors.New("wishlist not found")
)

// CartRepository defines the interface for cart data operations.
// Read-modify-write on a cart is last-writer-wins: a cart has a single writer.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error)
	AddLine(ctx context.Context, userID, productID string, quantity int, unitPrice int64) error
	SetLineQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveLine(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

// StockStore is the atomic stock primitive. DecrementIfAvailable is the only
// defense against overselling; Validate is a non-authoritative pre-check.
type StockStore interface {
	DecrementIfAvailable(ctx context.Context, productID string, quantity int) (*domain.Product, error)
	Validate(ctx context.Context, productID string, quantity int) (bool, error)
}

type ProductRepository interface {
	StockStore
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProducts(ctx context.Context, ids []string) ([]*domain.Product, error)
	ListActive(ctx context.Context) ([]*domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) error
	UpdateProduct(ctx context.Context, id string, update domain.ProductUpdate) (*domain.Product, error)
	UpsertBySlug(ctx context.Context, product *domain.Product) error
}

// OrderRepository never updates or deletes orders.
type OrderRepository interface {
	CreateOrder(ctx context.Context, userID string, lines []domain.OrderLine, total int64, currency string) (*domain.Order, error)
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	ListOrdersSince(ctx context.Context, since time.Time) ([]*domain.Order, error)
	CountOrders(ctx context.Context) (int64, error)
}

type WishlistRepository interface {
	GetWishlist(ctx context.Context, userID string) (*domain.Wishlist, error)
	AddProduct(ctx context.Context, userID, productID string) (*domain.Wishlist, error)
	RemoveProduct(ctx context.Context, userID, productID string) (*domain.Wishlist, error)
	HasProduct(ctx context.Context, userID, productID string) (bool, error)
}

type OutboxRepository interface {
	// RecordEvent is idempotent on event ID.
	RecordEvent(ctx context.Context, event *domain.OutboxEvent) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id string) error
	// MissingEvents returns the aggregate IDs that have no recorded event.
	MissingEvents(ctx context.Context, aggregateIDs []string) ([]string, error)
}

// ValidateOrder checks the invariants every OrderRepository enforces on create.
func ValidateOrder(lines []domain.OrderLine, total int64) error {
	for _, l := range lines {
		if l.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}
	if total != domain.SumLines(lines) {
		return ErrTotalMismatch
	}
	return nil
}

// OrderEventID is the outbox event ID for an order, so that re-recording the
// same order's event is a no-op.
func OrderEventID(orderID string) string {
	return domain.EventTypeOrderCompleted + ":" + orderID
}
