package domain

import "time"

type OrderStatus string

const (
	OrderStatusCompleted OrderStatus = "completed"
)

// OrderLine is a value snapshot of a cart line at commit time.
type OrderLine struct {
	ProductID       string `bson:"product_id" json:"product_id"`
	Quantity        int    `bson:"quantity" json:"quantity"`
	PriceAtPurchase int64  `bson:"price_at_purchase" json:"price_at_purchase"`
}

// Order is immutable once created except for Status.
type Order struct {
	ID        string      `bson:"_id" json:"id"`
	UserID    string      `bson:"user_id" json:"user_id"`
	Items     []OrderLine `bson:"items" json:"items"`
	Total     int64       `bson:"total" json:"total"`
	Currency  string      `bson:"currency" json:"currency"`
	Status    OrderStatus `bson:"status" json:"status"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
}

func (l OrderLine) Subtotal() int64 {
	return l.PriceAtPurchase * int64(l.Quantity)
}

// OrderLinesFromCart copies cart lines into order lines, PriceAtAdd becoming
// PriceAtPurchase, and returns the server-side total.
func OrderLinesFromCart(items []CartLine) ([]OrderLine, int64) {
	lines := make([]OrderLine, len(items))
	var total int64
	for i, item := range items {
		lines[i] = OrderLine{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtAdd,
		}
		total += lines[i].Subtotal()
	}
	return lines, total
}

// SumLines recomputes the total of an order's lines.
func SumLines(lines []OrderLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.Subtotal()
	}
	return total
}
