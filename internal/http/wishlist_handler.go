package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopline/storefront/internal/domain"
)

type WishlistService interface {
	GetWishlist(ctx context.Context, userID string) (*domain.Wishlist, error)
	AddProduct(ctx context.Context, userID, productID string) (*domain.Wishlist, error)
	RemoveProduct(ctx context.Context, userID, productID string) (*domain.Wishlist, error)
	Contains(ctx context.Context, userID, productID string) (bool, error)
}

type WishlistHandler struct {
	wishlists WishlistService
}

func NewWishlistHandler(wishlists WishlistService) *WishlistHandler {
	return &WishlistHandler{wishlists: wishlists}
}

type InWishlistResponse struct {
	InWishlist bool `json:"in_wishlist"`
}

// GET /api/v1/wishlist
func (h *WishlistHandler) Get(w http.ResponseWriter, r *http.Request) {
	wl, err := h.wishlists.GetWishlist(r.Context(), getUserID(r.Context()))
	respondWishlist(w, wl, err)
}

// PUT /api/v1/wishlist/items/{product_id}
func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	wl, err := h.wishlists.AddProduct(r.Context(), getUserID(r.Context()), chi.URLParam(r, "product_id"))
	respondWishlist(w, wl, err)
}

// DELETE /api/v1/wishlist/items/{product_id}
func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	wl, err := h.wishlists.RemoveProduct(r.Context(), getUserID(r.Context()), chi.URLParam(r, "product_id"))
	respondWishlist(w, wl, err)
}

// GET /api/v1/wishlist/items/{product_id}
func (h *WishlistHandler) Contains(w http.ResponseWriter, r *http.Request) {
	ok, err := h.wishlists.Contains(r.Context(), getUserID(r.Context()), chi.URLParam(r, "product_id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, InWishlistResponse{InWishlist: ok})
}

func respondWishlist(w http.ResponseWriter, wl *domain.Wishlist, err error) {
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, WishlistResponse{ProductIDs: wl.ProductIDs})
}
