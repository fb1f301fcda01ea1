package domain

import "time"

const EventTypeOrderCompleted = "order.completed"

// OutboxEvent is a pending integration event; AggregateID is the order id.
type OutboxEvent struct {
	ID          string     `bson:"_id"`
	AggregateID string     `bson:"aggregate_id"`
	EventType   string     `bson:"event_type"`
	Payload     []byte     `bson:"payload"`
	CreatedAt   time.Time  `bson:"created_at"`
	ProcessedAt *time.Time `bson:"processed_at,omitempty"`
}

// OrderCompletedEvent is the payload published for a committed order.
type OrderCompletedEvent struct {
	OrderID     string      `json:"order_id"`
	UserID      string      `json:"user_id"`
	Items       []OrderLine `json:"items"`
	Total       int64       `json:"total"`
	Currency    string      `json:"currency"`
	CompletedAt time.Time   `json:"completed_at"`
}

func NewOrderCompletedEvent(o *Order) OrderCompletedEvent {
	return OrderCompletedEvent{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Items:       o.Items,
		Total:       o.Total,
		Currency:    o.Currency,
		CompletedAt: o.CreatedAt,
	}
}
