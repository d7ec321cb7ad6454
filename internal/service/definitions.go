package service

import (
	"context"
	"time"

	"storefront-service/internal/gateway"
	"storefront-service/internal/models"
)

// Narrow interfaces over the concrete store, gateway and broker types.
// Services depend on these so each collaborator can be swapped in tests.

// CartStore persists cart rows
type CartStore interface {
	UpsertCartItem(ctx context.Context, userID, productID string, quantity int) error
	UpdateCartQuantity(ctx context.Context, userID, itemID string, quantity int) error
	RemoveCartItem(ctx context.Context, userID, itemID string) error
	ClearCart(ctx context.Context, userID string) error
	GetCartItems(ctx context.Context, userID string) ([]models.CartItem, error)
}

// ProductStore reads the catalog
type ProductStore interface {
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
}

// OrderStore persists orders and performs the conditional state transitions
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	GetOrderByStripeSession(ctx context.Context, sessionID string) (*models.Order, error)
	GetOrderByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error)
	GetOrderByRazorpayOrderID(ctx context.Context, razorpayOrderID string) (*models.Order, error)
	GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
	AttachStripeSession(ctx context.Context, orderID, sessionID, paymentIntentID string) error
	AttachRazorpayOrder(ctx context.Context, orderID, razorpayOrderID string) error
	MarkOrderPaid(ctx context.Context, orderID string, refs models.PaymentRefs) (bool, error)
	MarkOrderFailed(ctx context.Context, orderID, reason string) (bool, error)
	MarkOrderCancelled(ctx context.Context, orderID string) (bool, error)
}

// StripeGateway is the hosted-checkout provider boundary
type StripeGateway interface {
	CreateCheckoutSession(ctx context.Context, order *models.Order, items []models.OrderItem) (*gateway.CheckoutSession, error)
	VerifyWebhookSignature(body []byte, sigHeader string, now time.Time) error
}

// RazorpayGateway is the payment-sheet provider boundary
type RazorpayGateway interface {
	KeyID() string
	CreatePaymentOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*gateway.PaymentOrder, error)
	VerifyPaymentSignature(razorpayOrderID, razorpayPaymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

// EventPublisher emits order lifecycle events
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishOrderFailed(ctx context.Context, event *models.OrderFailedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

// WebhookDedup claims provider event deliveries
type WebhookDedup interface {
	ClaimWebhookEvent(ctx context.Context, provider, eventID string, ttl time.Duration) (bool, error)
}
