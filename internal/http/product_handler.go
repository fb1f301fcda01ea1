package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopline/storefront/internal/domain"
)

type CatalogService interface {
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, update domain.ProductUpdate) (*domain.Product, error)
}

type ProductHandler struct {
	catalog CatalogService
}

func NewProductHandler(catalog CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

type CreateProductRequestDTO struct {
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	SKU    string `json:"sku"`
	Price  int64  `json:"price_minor"`
	Stock  int    `json:"stock"`
	Active *bool  `json:"active"`
}

type UpdateProductRequestDTO struct {
	Price  *int64 `json:"price_minor"`
	Stock  *int   `json:"stock"`
	Active *bool  `json:"active"`
}

// GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := ProductsResponse{Products: make([]ProductResponse, len(products))}
	for i, p := range products {
		resp.Products[i] = toProductResponse(p)
	}
	respondJSON(w, http.StatusOK, resp)
}

// GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toProductResponse(p))
}

// POST /api/v1/admin/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	p, err := h.catalog.CreateProduct(r.Context(), &domain.Product{
		Name:   req.Name,
		Slug:   req.Slug,
		SKU:    req.SKU,
		Price:  req.Price,
		Stock:  req.Stock,
		Active: active,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toProductResponse(p))
}

// PATCH /api/v1/admin/products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateProductRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.catalog.UpdateProduct(r.Context(), chi.URLParam(r, "id"), domain.ProductUpdate{
		Price:  req.Price,
		Stock:  req.Stock,
		Active: req.Active,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toProductResponse(p))
}
