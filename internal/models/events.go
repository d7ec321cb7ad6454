package models

import "time"

// Event types
const (
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeOrderPaid      = "ORDER_PAID"
	EventTypeOrderFailed    = "ORDER_FAILED"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when a pending order is created
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	Provider    string          `json:"provider"`
	Currency    string          `json:"currency"`
	AmountMinor int64           `json:"amount_minor"`
	Items       []OrderItemData `json:"items"`
}

// OrderPaidEvent published exactly once, by whichever finalization path wins
// the pending->paid transition
type OrderPaidEvent struct {
	BaseEvent
	OrderID     string `json:"order_id"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Provider    string `json:"provider"`
	Currency    string `json:"currency"`
	AmountMinor int64  `json:"amount_minor"`
	ProviderRef string `json:"provider_ref"`
}

// OrderFailedEvent published when an order reaches the failed state
type OrderFailedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Reason  string `json:"reason"`
}

// OrderCancelledEvent published when a user abandons a hosted checkout
type OrderCancelledEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitMinor int64  `json:"unit_minor"`
}
