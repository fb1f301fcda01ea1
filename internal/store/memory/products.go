package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/repository"
)

// DecrementIfAvailable checks and subtracts under the write lock.
func (s *MemoryStore) DecrementIfAvailable(_ context.Context, productID string, quantity int) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, repository.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	if !product.Available(quantity) {
		return nil, repository.ErrInsufficientStock
	}

	product.Stock -= quantity
	product.UpdatedAt = s.now()
	cp := *product
	return &cp, nil
}

func (s *MemoryStore) Validate(_ context.Context, productID string, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, repository.ErrInvalidQuantity
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[productID]
	if !ok {
		return false, nil
	}
	return product.Available(quantity), nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *product
	return &cp, nil
}

func (s *MemoryStore) GetProducts(_ context.Context, ids []string) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Product, 0, len(ids))
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			cp := *product
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (s *MemoryStore) ListActive(_ context.Context) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.Product{}
	for _, product := range s.products {
		if product.Active {
			cp := *product
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *MemoryStore) CreateProduct(_ context.Context, product *domain.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertProductLocked(product)
}

func (s *MemoryStore) insertProductLocked(product *domain.Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if _, ok := s.products[product.ID]; ok {
		return repository.ErrDuplicateProduct
	}
	for _, existing := range s.products {
		if existing.Slug == product.Slug || existing.SKU == product.SKU {
			return repository.ErrDuplicateProduct
		}
	}

	now := s.now()
	product.CreatedAt = now
	product.UpdatedAt = now

	cp := *product
	s.products[product.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateProduct(_ context.Context, id string, update domain.ProductUpdate) (*domain.Product, error) {
	if (update.Price != nil && *update.Price < 0) || (update.Stock != nil && *update.Stock < 0) {
		return nil, repository.ErrInvalidProduct
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	if update.Price != nil {
		product.Price = *update.Price
	}
	if update.Stock != nil {
		product.Stock = *update.Stock
	}
	if update.Active != nil {
		product.Active = *update.Active
	}
	product.UpdatedAt = s.now()

	cp := *product
	return &cp, nil
}

func (s *MemoryStore) UpsertBySlug(_ context.Context, product *domain.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.products {
		if existing.Slug == product.Slug {
			return nil
		}
	}
	return s.insertProductLocked(product)
}

func validateProduct(p *domain.Product) error {
	if p == nil || strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Slug) == "" || strings.TrimSpace(p.SKU) == "" {
		return repository.ErrInvalidProduct
	}
	if p.Price < 0 || p.Stock < 0 {
		return repository.ErrInvalidProduct
	}
	return nil
}
