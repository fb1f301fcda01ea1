package domain

import "time"

// Cart is the buyer's single mutable basket. UserID is unique across carts.
type Cart struct {
	ID        string     `bson:"_id" json:"id"`
	UserID    string     `bson:"user_id" json:"user_id"`
	Items     []CartLine `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// CartLine freezes the unit price at the moment the product was first added.
type CartLine struct {
	ProductID  string    `bson:"product_id" json:"product_id"`
	Quantity   int       `bson:"quantity" json:"quantity"`
	PriceAtAdd int64     `bson:"price_at_add" json:"price_at_add"`
	AddedAt    time.Time `bson:"added_at" json:"added_at"`
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Total sums PriceAtAdd x Quantity over all lines, in minor units.
func (c *Cart) Total() int64 {
	if c == nil {
		return 0
	}
	var total int64
	for _, line := range c.Items {
		total += line.Subtotal()
	}
	return total
}

func (l CartLine) Subtotal() int64 {
	return l.PriceAtAdd * int64(l.Quantity)
}

// Line returns the line for productID, if present.
func (c *Cart) Line(productID string) (CartLine, bool) {
	if c == nil {
		return CartLine{}, false
	}
	for _, line := range c.Items {
		if line.ProductID == productID {
			return line, true
		}
	}
	return CartLine{}, false
}

// Clone returns a deep copy so callers can't share the Items backing array.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = make([]CartLine, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}

// ProductRef is a line's product reference, optionally expanded with the
// catalog entry it points to. Expanded is nil when the product is gone.
type ProductRef struct {
	ID       string   `json:"id"`
	Expanded *Product `json:"product,omitempty"`
}

// ResolvedLine pairs a cart line with its resolved product reference.
type ResolvedLine struct {
	CartLine
	Product ProductRef `json:"product"`
}
