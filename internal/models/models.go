package models

import "time"

// Product represents a product in the catalog. Prices are kept in both
// supported currencies; the order snapshot picks one at checkout time.
type Product struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Description   string    `db:"description" json:"description"`
	PriceEUR      float64   `db:"price_eur" json:"price_eur"`
	PriceINR      float64   `db:"price_inr" json:"price_inr"`
	Category      string    `db:"category" json:"category"`
	ImageURL      string    `db:"image_url" json:"image_url"`
	StockQuantity int       `db:"stock_quantity" json:"stock_quantity"`
	Featured      bool      `db:"featured" json:"featured"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// CartItem is one (user, product) row in the cart. The product is joined in
// on reads so totals can be derived without a second round trip.
type CartItem struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	ProductID string    `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	Product   *Product  `db:"-" json:"product,omitempty"`
}

// CartTotals holds the cart total in every supported currency, recomputed
// from the current rows on each read.
type CartTotals struct {
	EUR float64 `json:"eur"`
	INR float64 `json:"inr"`
}

// Order represents a purchase attempt. It is created pending before any
// gateway call and finalized by exactly one of the verify or webhook paths.
// Provider reference columns are kept separate per provider and must never
// be populated from another provider's identifiers.
type Order struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	Status          string    `db:"status" json:"status"`
	Currency        string    `db:"currency" json:"currency"`
	TotalAmount     float64   `db:"total_amount" json:"total_amount"`
	AmountMinor     int64     `db:"amount_minor" json:"amount_minor"`
	PaymentProvider string    `db:"payment_provider" json:"payment_provider"`
	IdempotencyKey  string    `db:"idempotency_key" json:"idempotency_key,omitempty"`
	FailureReason   string    `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	StripeSessionID       string `db:"stripe_session_id" json:"stripe_session_id,omitempty"`
	StripePaymentIntentID string `db:"stripe_payment_intent_id" json:"stripe_payment_intent_id,omitempty"`
	RazorpayOrderID       string `db:"razorpay_order_id" json:"razorpay_order_id,omitempty"`
	RazorpayPaymentID     string `db:"razorpay_payment_id" json:"razorpay_payment_id,omitempty"`

	Email     string `db:"email" json:"email"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Phone     string `db:"phone" json:"phone"`

	BillingAddress    string `db:"billing_address" json:"billing_address"`
	BillingCity       string `db:"billing_city" json:"billing_city"`
	BillingPostalCode string `db:"billing_postal_code" json:"billing_postal_code"`
	BillingCountry    string `db:"billing_country" json:"billing_country"`

	ShippingAddress    string `db:"shipping_address" json:"shipping_address"`
	ShippingCity       string `db:"shipping_city" json:"shipping_city"`
	ShippingPostalCode string `db:"shipping_postal_code" json:"shipping_postal_code"`
	ShippingCountry    string `db:"shipping_country" json:"shipping_country"`
}

// OrderItem is a line item snapshot. Name, image and unit price are copied
// from the catalog at order creation so later price edits cannot change an
// existing order.
type OrderItem struct {
	ID          int64   `db:"id" json:"id"`
	OrderID     string  `db:"order_id" json:"order_id"`
	ProductID   string  `db:"product_id" json:"product_id"`
	ProductName string  `db:"product_name" json:"product_name"`
	ImageURL    string  `db:"image_url" json:"image_url"`
	Quantity    int     `db:"quantity" json:"quantity"`
	UnitPrice   float64 `db:"unit_price" json:"unit_price"`
	UnitMinor   int64   `db:"unit_minor" json:"unit_minor"`
}

// PaymentRefs carries the provider identifiers recorded when an order is
// finalized. Only the fields for the order's own provider are populated.
type PaymentRefs struct {
	StripePaymentIntentID string
	RazorpayOrderID       string
	RazorpayPaymentID     string
}

// Order statuses. Pending is the only non-terminal state.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
	OrderStatusFailed    = "failed"
)

// Payment providers
const (
	ProviderStripe   = "stripe"
	ProviderRazorpay = "razorpay"
)

// Supported currencies
const (
	CurrencyEUR = "EUR"
	CurrencyINR = "INR"
)

// IsTerminalStatus reports whether a status can no longer change.
func IsTerminalStatus(status string) bool {
	switch status {
	case OrderStatusPaid, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

// Price returns the product price in the given currency.
func (p *Product) Price(currency string) float64 {
	if currency == CurrencyINR {
		return p.PriceINR
	}
	return p.PriceEUR
}
