package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopline/storefront/internal/cache"
	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/metrics"
	"github.com/shopline/storefront/internal/repository"
	"golang.org/x/sync/singleflight"
)

const cacheOpTimeout = time.Second

type CartService struct {
	repo     repository.CartRepository
	products repository.ProductRepository
	cache    cache.CartCache
	sfg      singleflight.Group // Prevents cache stampede
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewCartService(
	repo repository.CartRepository,
	products repository.ProductRepository,
	cache cache.CartCache,
	log *slog.Logger,
	m *metrics.Metrics,
) *CartService {
	return &CartService{
		repo:     repo,
		products: products,
		cache:    cache,
		log:      log.With(slog.String("component", "cart")),
		metrics:  m,
	}
}

// CartView is a cart with every product reference expanded.
type CartView struct {
	Cart  *domain.Cart
	Lines []domain.ResolvedLine
	Total int64
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			s.metrics.CartCache.WithLabelValues("hit").Inc()
			return cart, nil
		}

		if errors.Is(err, cache.ErrCacheMiss) {
			s.metrics.CartCache.WithLabelValues("miss").Inc()
		} else {
			s.metrics.CartCache.WithLabelValues("error").Inc()
			s.log.WarnContext(ctx, "cache get error", slog.String("user_id", userID), slog.Any("error", err))
		}

		cart, errGet := s.repo.GetCart(ctx, userID)
		if errors.Is(errGet, repository.ErrCartNotFound) {
			now := time.Now().UTC()
			return &domain.Cart{UserID: userID, Items: []domain.CartLine{}, CreatedAt: now, UpdatedAt: now}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheOpTimeout)
		defer cancel()
		if errSet := s.cache.Set(setCtx, userID, cart); errSet != nil {
			s.log.WarnContext(ctx, "cache set error", slog.String("user_id", userID), slog.Any("error", errSet))
		}

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart).Clone(), nil
}

// GetCartView resolves each line's product once. Lines whose product was
// deleted keep a bare reference.
func (s *CartService) GetCartView(ctx context.Context, userID string) (*CartView, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(cart.Items))
	for i, item := range cart.Items {
		ids[i] = item.ProductID
	}
	products, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]domain.ResolvedLine, len(cart.Items))
	for i, item := range cart.Items {
		lines[i] = domain.ResolvedLine{
			CartLine: item,
			Product:  domain.ProductRef{ID: item.ProductID, Expanded: byID[item.ProductID]},
		}
	}
	return &CartView{Cart: cart, Lines: lines, Total: cart.Total()}, nil
}

// AddItem adds quantity of the product at its current catalog price. The
// stock check here is advisory; checkout re-checks atomically.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return repository.ErrInvalidQuantity
	}

	product, err := s.sellableProduct(ctx, productID)
	if err != nil {
		return err
	}

	inCart := 0
	cart, err := s.repo.GetCart(ctx, userID)
	switch {
	case err == nil:
		if line, ok := cart.Line(productID); ok {
			inCart = line.Quantity
		}
	case !errors.Is(err, repository.ErrCartNotFound):
		return err
	}
	if quantity > product.Stock-inCart {
		return repository.ErrInsufficientStock
	}

	if err := s.repo.AddLine(ctx, userID, productID, quantity, product.Price); err != nil {
		s.log.ErrorContext(ctx, "repo add item error", slog.String("user_id", userID), slog.Any("error", err))
		return err
	}

	s.invalidateCache(ctx, userID)
	return nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return repository.ErrInvalidQuantity
	}

	product, err := s.sellableProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !product.Available(quantity) {
		return repository.ErrInsufficientStock
	}

	if err := s.repo.SetLineQuantity(ctx, userID, productID, quantity); err != nil {
		return err
	}

	s.invalidateCache(ctx, userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) error {
	if err := s.repo.RemoveLine(ctx, userID, productID); err != nil {
		return err
	}

	s.invalidateCache(ctx, userID)
	return nil
}

func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		s.log.ErrorContext(ctx, "repo clear cart error", slog.String("user_id", userID), slog.Any("error", err))
		return err
	}

	s.invalidateCache(ctx, userID)
	return nil
}

func (s *CartService) sellableProduct(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, ErrProductUnavailable
	}
	return product, nil
}

func (s *CartService) invalidateCache(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheOpTimeout)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.WarnContext(ctx, "cache invalidate error", slog.String("user_id", userID), slog.Any("error", err))
	}
}
