package service

import (
	"context"
	"fmt"

	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/repository"
)

type CatalogService struct {
	products repository.ProductRepository
}

func NewCatalogService(products repository.ProductRepository) *CatalogService {
	return &CatalogService{products: products}
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.products.ListActive(ctx)
}

// GetProduct hides inactive products from buyers.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	if err := s.products.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, update domain.ProductUpdate) (*domain.Product, error) {
	return s.products.UpdateProduct(ctx, id, update)
}

// Seed inserts the products whose slug is not taken yet.
func (s *CatalogService) Seed(ctx context.Context, products []*domain.Product) error {
	for _, p := range products {
		if err := s.products.UpsertBySlug(ctx, p); err != nil {
			return fmt.Errorf("seed %s: %w", p.Slug, err)
		}
	}
	return nil
}

// DemoCatalog is the catalog SEED_CATALOG loads.
func DemoCatalog() []*domain.Product {
	return []*domain.Product{
		{Name: "Ceramic Mug", Slug: "ceramic-mug", SKU: "MUG-001", Price: 1200, Stock: 50, Active: true},
		{Name: "Desk Lamp", Slug: "desk-lamp", SKU: "LMP-001", Price: 3999, Stock: 15, Active: true},
		{Name: "Notebook A5", Slug: "notebook-a5", SKU: "NTB-005", Price: 650, Stock: 200, Active: true},
		{Name: "Fountain Pen", Slug: "fountain-pen", SKU: "PEN-010", Price: 8900, Stock: 5, Active: true},
		{Name: "Canvas Tote", Slug: "canvas-tote", SKU: "TOT-002", Price: 1800, Stock: 1, Active: true},
	}
}
