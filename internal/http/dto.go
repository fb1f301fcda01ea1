package http

import (
	"time"

	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/service"
	"github.com/shopspring/decimal"
)

// formatMoney renders minor units as a fixed two-decimal amount.
func formatMoney(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

type ProductResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	SKU        string `json:"sku"`
	Price      string `json:"price"`
	PriceMinor int64  `json:"price_minor"`
	Stock      int    `json:"stock"`
	Active     bool   `json:"active"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
}

func toProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:         p.ID,
		Name:       p.Name,
		Slug:       p.Slug,
		SKU:        p.SKU,
		Price:      formatMoney(p.Price),
		PriceMinor: p.Price,
		Stock:      p.Stock,
		Active:     p.Active,
	}
}

type CartLineResponse struct {
	ProductID       string           `json:"product_id"`
	Quantity        int              `json:"quantity"`
	PriceAtAdd      string           `json:"price_at_add"`
	PriceAtAddMinor int64            `json:"price_at_add_minor"`
	Subtotal        string           `json:"subtotal"`
	Product         *ProductResponse `json:"product,omitempty"`
}

type CartResponse struct {
	UserID     string             `json:"user_id"`
	Items      []CartLineResponse `json:"items"`
	Total      string             `json:"total"`
	TotalMinor int64              `json:"total_minor"`
	Currency   string             `json:"currency"`
}

func toCartResponse(view *service.CartView, currency string) CartResponse {
	items := make([]CartLineResponse, len(view.Lines))
	for i, line := range view.Lines {
		items[i] = CartLineResponse{
			ProductID:       line.ProductID,
			Quantity:        line.Quantity,
			PriceAtAdd:      formatMoney(line.PriceAtAdd),
			PriceAtAddMinor: line.PriceAtAdd,
			Subtotal:        formatMoney(line.Subtotal()),
		}
		if line.Product.Expanded != nil {
			p := toProductResponse(line.Product.Expanded)
			items[i].Product = &p
		}
	}
	return CartResponse{
		UserID:     view.Cart.UserID,
		Items:      items,
		Total:      formatMoney(view.Total),
		TotalMinor: view.Total,
		Currency:   currency,
	}
}

type OrderLineResponse struct {
	ProductID       string `json:"product_id"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase string `json:"price_at_purchase"`
	Subtotal        string `json:"subtotal"`
}

type OrderResponse struct {
	ID         string              `json:"id"`
	UserID     string              `json:"user_id"`
	Items      []OrderLineResponse `json:"items"`
	Total      string              `json:"total"`
	TotalMinor int64               `json:"total_minor"`
	Currency   string              `json:"currency"`
	Status     string              `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
}

type OrdersResponse struct {
	Orders []OrderResponse `json:"orders"`
}

func toOrderResponse(o *domain.Order) OrderResponse {
	items := make([]OrderLineResponse, len(o.Items))
	for i, l := range o.Items {
		items[i] = OrderLineResponse{
			ProductID:       l.ProductID,
			Quantity:        l.Quantity,
			PriceAtPurchase: formatMoney(l.PriceAtPurchase),
			Subtotal:        formatMoney(l.Subtotal()),
		}
	}
	return OrderResponse{
		ID:         o.ID,
		UserID:     o.UserID,
		Items:      items,
		Total:      formatMoney(o.Total),
		TotalMinor: o.Total,
		Currency:   o.Currency,
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt,
	}
}

type WishlistResponse struct {
	ProductIDs []string `json:"product_ids"`
}
