package domain

import "time"

// Product is the catalog entry a cart line references. Price is in minor
// currency units.
type Product struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Slug      string    `bson:"slug" json:"slug"`
	SKU       string    `bson:"sku" json:"sku"`
	Price     int64     `bson:"price" json:"price"`
	Stock     int       `bson:"stock" json:"stock"`
	Active    bool      `bson:"active" json:"active"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Available reports whether quantity can currently be sold. It is a snapshot,
// not a guarantee.
func (p Product) Available(quantity int) bool {
	return p.Active && p.Stock >= quantity
}

// ProductUpdate carries the admin-editable fields; nil means unchanged.
type ProductUpdate struct {
	Price  *int64
	Stock  *int
	Active *bool
}
