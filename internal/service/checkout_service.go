package service

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutService orchestrates checkout: validate the form, snapshot the
// cart into a pending order, open the provider flow, and (for the payment
// sheet variant) verify the returned signature. Orders only ever leave
// pending through the finalizer.
type CheckoutService struct {
	orders    OrderStore
	carts     CartStore
	stripe    StripeGateway
	razorpay  RazorpayGateway
	publisher EventPublisher
	finalizer *OrderFinalizer
	logger    *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	orders OrderStore,
	carts CartStore,
	stripe StripeGateway,
	razorpay RazorpayGateway,
	publisher EventPublisher,
	finalizer *OrderFinalizer,
) *CheckoutService {
	return &CheckoutService{
		orders:    orders,
		carts:     carts,
		stripe:    stripe,
		razorpay:  razorpay,
		publisher: publisher,
		finalizer: finalizer,
		logger:    util.GetLogger(),
	}
}

// CheckoutForm carries the contact and address fields collected at checkout
type CheckoutForm struct {
	Email          string       `json:"email"`
	FirstName      string       `json:"first_name"`
	LastName       string       `json:"last_name"`
	Phone          string       `json:"phone"`
	Address        string       `json:"address"`
	City           string       `json:"city"`
	PostalCode     string       `json:"postal_code"`
	Country        string       `json:"country"`
	Currency       string       `json:"currency"`
	SameAsBilling  bool         `json:"same_as_billing"`
	Shipping       ShippingForm `json:"shipping_address"`
	IdempotencyKey string       `json:"idempotency_key,omitempty"`
}

// ShippingForm is the separate shipping address, used when SameAsBilling is
// false
type ShippingForm struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (f *CheckoutForm) validate() error {
	required := []struct{ field, value string }{
		{"email", f.Email},
		{"first_name", f.FirstName},
		{"last_name", f.LastName},
		{"phone", f.Phone},
		{"address", f.Address},
		{"city", f.City},
		{"postal_code", f.PostalCode},
		{"country", f.Country},
	}
	for _, r := range required {
		if r.value == "" {
			return models.ValidationError(r.field, "is required")
		}
	}

	if f.Currency != models.CurrencyEUR && f.Currency != models.CurrencyINR {
		return models.ValidationError("currency", "must be EUR or INR")
	}

	if !f.SameAsBilling {
		shippingRequired := []struct{ field, value string }{
			{"shipping_address.address", f.Shipping.Address},
			{"shipping_address.city", f.Shipping.City},
			{"shipping_address.postal_code", f.Shipping.PostalCode},
			{"shipping_address.country", f.Shipping.Country},
		}
		for _, r := range shippingRequired {
			if r.value == "" {
				return models.ValidationError(r.field, "is required")
			}
		}
	}

	return nil
}

// StripeCheckoutResponse is returned to the client to start the redirect
// flow
type StripeCheckoutResponse struct {
	OrderID     string `json:"order_id"`
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// RazorpayCheckoutResponse is returned to the client to open the payment
// sheet
type RazorpayCheckoutResponse struct {
	OrderID         string `json:"order_id"`
	RazorpayOrderID string `json:"razorpay_order_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	KeyID           string `json:"key_id"`
}

// VerifyPaymentRequest carries the payment sheet result back for server-side
// signature verification
type VerifyPaymentRequest struct {
	OrderID           string `json:"order_id"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// BeginStripeCheckout creates a pending order from the cart and opens a
// hosted checkout session. The cart survives untouched until payment is
// confirmed on the webhook.
func (s *CheckoutService) BeginStripeCheckout(ctx context.Context, session models.Session, form *CheckoutForm) (*StripeCheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.BeginStripeCheckout")
	defer span.End()

	order, items, err := s.createPendingOrder(ctx, session, form, models.ProviderStripe)
	if err != nil {
		return nil, err
	}
	if order.StripeSessionID != "" {
		// duplicate request, provider session already exists
		return &StripeCheckoutResponse{OrderID: order.ID, SessionID: order.StripeSessionID}, nil
	}

	start := time.Now()
	checkout, err := s.stripe.CreateCheckoutSession(ctx, order, items)
	util.GatewayRequestLatency.WithLabelValues(models.ProviderStripe, "create_session").Observe(time.Since(start).Seconds())
	if err != nil {
		// Unknown outcome leaves the order pending, never paid. The user
		// retries by re-initiating checkout.
		s.logger.Error("Stripe session creation failed",
			zap.String("order_id", order.ID),
			zap.Error(err))
		return nil, fmt.Errorf("stripe checkout: %w", err)
	}

	if err := s.orders.AttachStripeSession(ctx, order.ID, checkout.SessionID, checkout.PaymentIntentID); err != nil {
		return nil, fmt.Errorf("failed to attach stripe session: %w", err)
	}

	return &StripeCheckoutResponse{
		OrderID:     order.ID,
		SessionID:   checkout.SessionID,
		RedirectURL: checkout.RedirectURL,
	}, nil
}

// BeginRazorpayCheckout creates a pending order from the cart and opens a
// provider-side payment order for the embedded sheet. Razorpay settles in
// INR only.
func (s *CheckoutService) BeginRazorpayCheckout(ctx context.Context, session models.Session, form *CheckoutForm) (*RazorpayCheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.BeginRazorpayCheckout")
	defer span.End()

	if form.Currency != "" && form.Currency != models.CurrencyINR {
		return nil, models.ValidationError("currency", "must be INR for this payment method")
	}
	form.Currency = models.CurrencyINR

	order, _, err := s.createPendingOrder(ctx, session, form, models.ProviderRazorpay)
	if err != nil {
		return nil, err
	}
	if order.RazorpayOrderID != "" {
		return &RazorpayCheckoutResponse{
			OrderID:         order.ID,
			RazorpayOrderID: order.RazorpayOrderID,
			Amount:          order.AmountMinor,
			Currency:        order.Currency,
			KeyID:           s.razorpay.KeyID(),
		}, nil
	}

	start := time.Now()
	paymentOrder, err := s.razorpay.CreatePaymentOrder(ctx, order.AmountMinor, order.Currency, order.ID)
	util.GatewayRequestLatency.WithLabelValues(models.ProviderRazorpay, "create_order").Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("Razorpay order creation failed",
			zap.String("order_id", order.ID),
			zap.Error(err))
		return nil, fmt.Errorf("razorpay checkout: %w", err)
	}

	if err := s.orders.AttachRazorpayOrder(ctx, order.ID, paymentOrder.ProviderOrderID); err != nil {
		return nil, fmt.Errorf("failed to attach razorpay order: %w", err)
	}

	return &RazorpayCheckoutResponse{
		OrderID:         order.ID,
		RazorpayOrderID: paymentOrder.ProviderOrderID,
		Amount:          paymentOrder.Amount,
		Currency:        paymentOrder.Currency,
		KeyID:           s.razorpay.KeyID(),
	}, nil
}

// createPendingOrder validates the form, snapshots the cart into a pending
// order and publishes OrderCreated. When an idempotency key matches an
// existing order, that order is returned with no new row.
func (s *CheckoutService) createPendingOrder(ctx context.Context, session models.Session, form *CheckoutForm, provider string) (*models.Order, []models.OrderItem, error) {
	if !session.Authenticated() {
		return nil, nil, models.ErrAuthRequired
	}
	if err := form.validate(); err != nil {
		return nil, nil, err
	}

	if form.IdempotencyKey != "" {
		existing, err := s.orders.GetOrderByIdempotencyKey(ctx, form.IdempotencyKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			s.logger.Info("Duplicate checkout request detected",
				zap.String("idempotency_key", form.IdempotencyKey),
				zap.String("order_id", existing.ID))
			items, err := s.orders.GetOrderItems(ctx, existing.ID)
			return existing, items, err
		}
	}

	cartItems, err := s.carts.GetCartItems(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(cartItems) == 0 {
		return nil, nil, models.ValidationError("cart", "is empty")
	}

	var total float64
	items := make([]models.OrderItem, 0, len(cartItems))
	eventItems := make([]models.OrderItemData, 0, len(cartItems))
	for _, ci := range cartItems {
		if ci.Product == nil {
			return nil, nil, fmt.Errorf("cart item %s has no product: %w", ci.ID, models.ErrNotFound)
		}
		unitPrice := ci.Product.Price(form.Currency)
		unitMinor := models.ToMinorUnits(unitPrice)
		total += unitPrice * float64(ci.Quantity)

		items = append(items, models.OrderItem{
			ProductID:   ci.ProductID,
			ProductName: ci.Product.Name,
			ImageURL:    ci.Product.ImageURL,
			Quantity:    ci.Quantity,
			UnitPrice:   unitPrice,
			UnitMinor:   unitMinor,
		})
		eventItems = append(eventItems, models.OrderItemData{
			ProductID: ci.ProductID,
			Quantity:  ci.Quantity,
			UnitMinor: unitMinor,
		})
	}

	order := &models.Order{
		ID:              uuid.New().String(),
		UserID:          session.UserID,
		Status:          models.OrderStatusPending,
		Currency:        form.Currency,
		TotalAmount:     total,
		AmountMinor:     models.ToMinorUnits(total),
		PaymentProvider: provider,
		IdempotencyKey:  form.IdempotencyKey,
		Email:           form.Email,
		FirstName:       form.FirstName,
		LastName:        form.LastName,
		Phone:           form.Phone,

		BillingAddress:    form.Address,
		BillingCity:       form.City,
		BillingPostalCode: form.PostalCode,
		BillingCountry:    form.Country,
	}

	if form.SameAsBilling {
		order.ShippingAddress = form.Address
		order.ShippingCity = form.City
		order.ShippingPostalCode = form.PostalCode
		order.ShippingCountry = form.Country
	} else {
		order.ShippingAddress = form.Shipping.Address
		order.ShippingCity = form.Shipping.City
		order.ShippingPostalCode = form.Shipping.PostalCode
		order.ShippingCountry = form.Shipping.Country
	}

	if err := s.orders.CreateOrder(ctx, order, items); err != nil {
		return nil, nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.WithLabelValues(provider).Inc()
	s.logger.Info("Pending order created",
		zap.String("order_id", order.ID),
		zap.String("provider", provider),
		zap.Int64("amount_minor", order.AmountMinor))

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		UserID:      order.UserID,
		Provider:    provider,
		Currency:    order.Currency,
		AmountMinor: order.AmountMinor,
		Items:       eventItems,
	}
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return order, items, nil
}

// VerifyRazorpayPayment recomputes the payment signature server-side and,
// when valid, finalizes the order. An invalid signature leaves the order
// pending and fires no side effects.
func (s *CheckoutService) VerifyRazorpayPayment(ctx context.Context, session models.Session, req *VerifyPaymentRequest) error {
	ctx, span := util.StartSpan(ctx, "CheckoutService.VerifyRazorpayPayment")
	defer span.End()

	if !session.Authenticated() {
		return models.ErrAuthRequired
	}

	order, err := s.orders.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return err
	}
	if order.UserID != session.UserID {
		return fmt.Errorf("order %s: %w", req.OrderID, models.ErrNotFound)
	}

	// The signature is recomputed over the provider order id we stored at
	// checkout, not the one the client sent, so a signature lifted from a
	// different order can never match.
	if !s.razorpay.VerifyPaymentSignature(order.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		util.SignatureFailuresTotal.WithLabelValues("razorpay_verify").Inc()
		util.PaymentVerificationsTotal.WithLabelValues("invalid").Inc()
		s.logger.Warn("Razorpay payment signature rejected",
			zap.String("order_id", order.ID))
		return models.ErrSignatureInvalid
	}

	refs := models.PaymentRefs{
		RazorpayOrderID:   order.RazorpayOrderID,
		RazorpayPaymentID: req.RazorpayPaymentID,
	}
	if _, err := s.finalizer.FinalizePaid(ctx, order, refs, "verify"); err != nil {
		return err
	}

	util.PaymentVerificationsTotal.WithLabelValues("valid").Inc()
	return nil
}

// CancelCheckout handles the redirect back from an abandoned hosted flow.
// The order is resolved by the provider session id carried on the cancel
// URL, never by a client-supplied order id.
func (s *CheckoutService) CancelCheckout(ctx context.Context, stripeSessionID string) error {
	order, err := s.orders.GetOrderByStripeSession(ctx, stripeSessionID)
	if err != nil {
		return err
	}

	_, err = s.finalizer.FinalizeCancelled(ctx, order)
	return err
}

// GetOrderBySession resolves one of the caller's orders by the provider
// session id carried on the success redirect. The confirmation page lands
// with only the session id, never an order id.
func (s *CheckoutService) GetOrderBySession(ctx context.Context, session models.Session, stripeSessionID string) (*models.Order, []models.OrderItem, error) {
	if !session.Authenticated() {
		return nil, nil, models.ErrAuthRequired
	}

	order, err := s.orders.GetOrderByStripeSession(ctx, stripeSessionID)
	if err != nil {
		return nil, nil, err
	}
	if order.UserID != session.UserID {
		return nil, nil, fmt.Errorf("checkout session %s: %w", stripeSessionID, models.ErrNotFound)
	}

	items, err := s.orders.GetOrderItems(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// GetOrder retrieves one of the caller's orders with its line items
func (s *CheckoutService) GetOrder(ctx context.Context, session models.Session, orderID string) (*models.Order, []models.OrderItem, error) {
	if !session.Authenticated() {
		return nil, nil, models.ErrAuthRequired
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order.UserID != session.UserID {
		return nil, nil, fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}

	items, err := s.orders.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// ListOrders retrieves the caller's orders, newest first
func (s *CheckoutService) ListOrders(ctx context.Context, session models.Session) ([]models.Order, error) {
	if !session.Authenticated() {
		return nil, models.ErrAuthRequired
	}
	return s.orders.GetOrdersByUser(ctx, session.UserID)
}
