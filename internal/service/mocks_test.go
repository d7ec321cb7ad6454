package service

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/gateway"
	"storefront-service/internal/models"
)

// Hand-written mocks over the service interfaces. State lives in maps so
// tests can assert on what actually got persisted.

type mockOrderStore struct {
	orders        map[string]*models.Order
	items         map[string][]models.OrderItem
	markPaidCalls int
	createErr     error
}

func newMockOrderStore() *mockOrderStore {
	return &mockOrderStore{
		orders: map[string]*models.Order{},
		items:  map[string][]models.OrderItem{},
	}
}

func (m *mockOrderStore) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	if m.createErr != nil {
		return m.createErr
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	copied := *order
	m.orders[order.ID] = &copied
	m.items[order.ID] = append([]models.OrderItem{}, items...)
	return nil
}

func (m *mockOrderStore) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	if order, ok := m.orders[id]; ok {
		copied := *order
		return &copied, nil
	}
	return nil, fmt.Errorf("order %s: %w", id, models.ErrNotFound)
}

func (m *mockOrderStore) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	for _, order := range m.orders {
		if order.IdempotencyKey == key {
			copied := *order
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockOrderStore) GetOrderByStripeSession(ctx context.Context, sessionID string) (*models.Order, error) {
	return m.findBy(func(o *models.Order) bool { return o.StripeSessionID == sessionID })
}

func (m *mockOrderStore) GetOrderByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error) {
	return m.findBy(func(o *models.Order) bool { return o.StripePaymentIntentID == intentID })
}

func (m *mockOrderStore) GetOrderByRazorpayOrderID(ctx context.Context, razorpayOrderID string) (*models.Order, error) {
	return m.findBy(func(o *models.Order) bool { return o.RazorpayOrderID == razorpayOrderID })
}

func (m *mockOrderStore) findBy(match func(*models.Order) bool) (*models.Order, error) {
	for _, order := range m.orders {
		if match(order) {
			copied := *order
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("order: %w", models.ErrNotFound)
}

func (m *mockOrderStore) GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var out []models.Order
	for _, order := range m.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (m *mockOrderStore) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	return append([]models.OrderItem{}, m.items[orderID]...), nil
}

func (m *mockOrderStore) AttachStripeSession(ctx context.Context, orderID, sessionID, paymentIntentID string) error {
	order, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	order.StripeSessionID = sessionID
	order.StripePaymentIntentID = paymentIntentID
	return nil
}

func (m *mockOrderStore) AttachRazorpayOrder(ctx context.Context, orderID, razorpayOrderID string) error {
	order, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	order.RazorpayOrderID = razorpayOrderID
	return nil
}

// MarkOrderPaid mirrors the store's conditional UPDATE semantics
func (m *mockOrderStore) MarkOrderPaid(ctx context.Context, orderID string, refs models.PaymentRefs) (bool, error) {
	m.markPaidCalls++
	order, ok := m.orders[orderID]
	if !ok {
		return false, fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	if order.Status != models.OrderStatusPending {
		if order.Status == models.OrderStatusPaid {
			return false, nil
		}
		return false, &models.StateTransitionError{OrderID: orderID, From: order.Status, To: models.OrderStatusPaid}
	}
	order.Status = models.OrderStatusPaid
	if refs.StripePaymentIntentID != "" {
		order.StripePaymentIntentID = refs.StripePaymentIntentID
	}
	if refs.RazorpayOrderID != "" {
		order.RazorpayOrderID = refs.RazorpayOrderID
	}
	if refs.RazorpayPaymentID != "" {
		order.RazorpayPaymentID = refs.RazorpayPaymentID
	}
	return true, nil
}

func (m *mockOrderStore) MarkOrderFailed(ctx context.Context, orderID, reason string) (bool, error) {
	return m.markTerminal(orderID, models.OrderStatusFailed, reason)
}

func (m *mockOrderStore) MarkOrderCancelled(ctx context.Context, orderID string) (bool, error) {
	return m.markTerminal(orderID, models.OrderStatusCancelled, "")
}

func (m *mockOrderStore) markTerminal(orderID, status, reason string) (bool, error) {
	order, ok := m.orders[orderID]
	if !ok {
		return false, fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	if order.Status != models.OrderStatusPending {
		if order.Status == status {
			return false, nil
		}
		return false, &models.StateTransitionError{OrderID: orderID, From: order.Status, To: status}
	}
	order.Status = status
	order.FailureReason = reason
	return true, nil
}

type mockCartStore struct {
	itemsByUser map[string][]models.CartItem
	clearCalls  int
}

func newMockCartStore() *mockCartStore {
	return &mockCartStore{itemsByUser: map[string][]models.CartItem{}}
}

func (m *mockCartStore) UpsertCartItem(ctx context.Context, userID, productID string, quantity int) error {
	items := m.itemsByUser[userID]
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity += quantity
			return nil
		}
	}
	m.itemsByUser[userID] = append(items, models.CartItem{
		ID:        fmt.Sprintf("item-%s-%s", userID, productID),
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	})
	return nil
}

func (m *mockCartStore) UpdateCartQuantity(ctx context.Context, userID, itemID string, quantity int) error {
	items := m.itemsByUser[userID]
	for i := range items {
		if items[i].ID == itemID {
			items[i].Quantity = quantity
			return nil
		}
	}
	return fmt.Errorf("cart item %s: %w", itemID, models.ErrNotFound)
}

func (m *mockCartStore) RemoveCartItem(ctx context.Context, userID, itemID string) error {
	items := m.itemsByUser[userID]
	for i := range items {
		if items[i].ID == itemID {
			m.itemsByUser[userID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockCartStore) ClearCart(ctx context.Context, userID string) error {
	m.clearCalls++
	delete(m.itemsByUser, userID)
	return nil
}

func (m *mockCartStore) GetCartItems(ctx context.Context, userID string) ([]models.CartItem, error) {
	return append([]models.CartItem{}, m.itemsByUser[userID]...), nil
}

type mockProductStore struct {
	products map[string]*models.Product
}

func (m *mockProductStore) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	if p, ok := m.products[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("product %s: %w", id, models.ErrNotFound)
}

type mockStripeGateway struct {
	session     *gateway.CheckoutSession
	createErr   error
	verifyErr   error
	createCalls int
	lastOrder   *models.Order
	lastItems   []models.OrderItem
}

func (m *mockStripeGateway) CreateCheckoutSession(ctx context.Context, order *models.Order, items []models.OrderItem) (*gateway.CheckoutSession, error) {
	m.createCalls++
	m.lastOrder = order
	m.lastItems = items
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.session, nil
}

func (m *mockStripeGateway) VerifyWebhookSignature(body []byte, sigHeader string, now time.Time) error {
	return m.verifyErr
}

type mockRazorpayGateway struct {
	keyID          string
	order          *gateway.PaymentOrder
	createErr      error
	signatureValid bool
	webhookValid   bool
	createCalls    int
	lastAmount     int64
	lastCurrency   string
}

func (m *mockRazorpayGateway) KeyID() string {
	return m.keyID
}

func (m *mockRazorpayGateway) CreatePaymentOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*gateway.PaymentOrder, error) {
	m.createCalls++
	m.lastAmount = amountMinor
	m.lastCurrency = currency
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.order != nil {
		return m.order, nil
	}
	return &gateway.PaymentOrder{
		ProviderOrderID: "order_rzp_1",
		Amount:          amountMinor,
		Currency:        currency,
	}, nil
}

func (m *mockRazorpayGateway) VerifyPaymentSignature(razorpayOrderID, razorpayPaymentID, signature string) bool {
	return m.signatureValid
}

func (m *mockRazorpayGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return m.webhookValid
}

type mockPublisher struct {
	created   []*models.OrderCreatedEvent
	paid      []*models.OrderPaidEvent
	failed    []*models.OrderFailedEvent
	cancelled []*models.OrderCancelledEvent
}

func (m *mockPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	m.created = append(m.created, event)
	return nil
}

func (m *mockPublisher) PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	m.paid = append(m.paid, event)
	return nil
}

func (m *mockPublisher) PublishOrderFailed(ctx context.Context, event *models.OrderFailedEvent) error {
	m.failed = append(m.failed, event)
	return nil
}

func (m *mockPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	m.cancelled = append(m.cancelled, event)
	return nil
}

type mockDedup struct {
	seen     map[string]bool
	claimErr error
}

func newMockDedup() *mockDedup {
	return &mockDedup{seen: map[string]bool{}}
}

func (m *mockDedup) ClaimWebhookEvent(ctx context.Context, provider, eventID string, ttl time.Duration) (bool, error) {
	if m.claimErr != nil {
		return false, m.claimErr
	}
	key := provider + ":" + eventID
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}
