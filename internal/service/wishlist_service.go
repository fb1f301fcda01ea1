package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/repository"
)

type WishlistService struct {
	repo     repository.WishlistRepository
	products repository.ProductRepository
}

func NewWishlistService(repo repository.WishlistRepository, products repository.ProductRepository) *WishlistService {
	return &WishlistService{repo: repo, products: products}
}

// GetWishlist returns the buyer's wishlist, empty if they never saved one.
func (s *WishlistService) GetWishlist(ctx context.Context, userID string) (*domain.Wishlist, error) {
	w, err := s.repo.GetWishlist(ctx, userID)
	if errors.Is(err, repository.ErrWishlistNotFound) {
		return emptyWishlist(userID), nil
	}
	return w, err
}

func (s *WishlistService) AddProduct(ctx context.Context, userID, productID string) (*domain.Wishlist, error) {
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.AddProduct(ctx, userID, productID)
}

func (s *WishlistService) RemoveProduct(ctx context.Context, userID, productID string) (*domain.Wishlist, error) {
	w, err := s.repo.RemoveProduct(ctx, userID, productID)
	if errors.Is(err, repository.ErrWishlistNotFound) {
		return emptyWishlist(userID), nil
	}
	return w, err
}

func (s *WishlistService) Contains(ctx context.Context, userID, productID string) (bool, error) {
	return s.repo.HasProduct(ctx, userID, productID)
}

func emptyWishlist(userID string) *domain.Wishlist {
	now := time.Now().UTC()
	return &domain.Wishlist{UserID: userID, ProductIDs: []string{}, CreatedAt: now, UpdatedAt: now}
}
