package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhookFixture struct {
	svc       *WebhookService
	orders    *mockOrderStore
	carts     *mockCartStore
	stripe    *mockStripeGateway
	razorpay  *mockRazorpayGateway
	publisher *mockPublisher
	dedup     *mockDedup
}

func newWebhookFixture() *webhookFixture {
	orders := newMockOrderStore()
	carts := newMockCartStore()
	stripe := &mockStripeGateway{}
	razorpay := &mockRazorpayGateway{webhookValid: true}
	publisher := &mockPublisher{}
	dedup := newMockDedup()
	finalizer := NewOrderFinalizer(orders, carts, publisher)

	return &webhookFixture{
		svc:       NewWebhookService(orders, stripe, razorpay, dedup, finalizer, time.Hour),
		orders:    orders,
		carts:     carts,
		stripe:    stripe,
		razorpay:  razorpay,
		publisher: publisher,
		dedup:     dedup,
	}
}

func (f *webhookFixture) seedPendingOrder(t *testing.T, provider string) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:              "order-1",
		UserID:          "user-1",
		Status:          models.OrderStatusPending,
		Currency:        models.CurrencyEUR,
		TotalAmount:     30.00,
		AmountMinor:     3000,
		PaymentProvider: provider,
		Email:           "ada@example.com",
	}
	if provider == models.ProviderStripe {
		order.StripeSessionID = "cs_test_1"
		order.StripePaymentIntentID = "pi_test_1"
	} else {
		order.RazorpayOrderID = "order_rzp_1"
	}
	require.NoError(t, f.orders.CreateOrder(context.Background(), order, nil))
	return order
}

func stripeEventBody(eventID, eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"type":%q,"data":{"object":%s}}`, eventID, eventType, object))
}

func TestStripeWebhookBadSignature(t *testing.T) {
	f := newWebhookFixture()
	f.seedPendingOrder(t, models.ProviderStripe)
	f.stripe.verifyErr = models.ErrSignatureInvalid

	body := stripeEventBody("evt_1", "checkout.session.completed", `{"id":"cs_test_1","payment_intent":"pi_test_1"}`)
	err := f.svc.HandleStripeEvent(context.Background(), body, "t=1,v1=bad")

	assert.ErrorIs(t, err, models.ErrSignatureInvalid)
	order, _ := f.orders.GetOrderByID(context.Background(), "order-1")
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Empty(t, f.publisher.paid)
}

func TestStripeWebhookCheckoutCompleted(t *testing.T) {
	f := newWebhookFixture()
	f.seedPendingOrder(t, models.ProviderStripe)
	require.NoError(t, f.carts.UpsertCartItem(context.Background(), "user-1", "prod-1", 1))

	body := stripeEventBody("evt_1", "checkout.session.completed", `{"id":"cs_test_1","payment_intent":"pi_test_1"}`)
	require.NoError(t, f.svc.HandleStripeEvent(context.Background(), body, "sig"))

	order, err := f.orders.GetOrderByID(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Equal(t, "pi_test_1", order.StripePaymentIntentID)
	assert.Empty(t, f.carts.itemsByUser["user-1"])
	require.Len(t, f.publisher.paid, 1)
	assert.Equal(t, "pi_test_1", f.publisher.paid[0].ProviderRef)
}

func TestStripeWebhookPaymentIntentSucceeded(t *testing.T) {
	f := newWebhookFixture()
	f.seedPendingOrder(t, models.ProviderStripe)

	body := stripeEventBody("evt_2", "payment_intent.succeeded", `{"id":"pi_test_1"}`)
	require.NoError(t, f.svc.HandleStripeEvent(context.Background(), body, "sig"))

	order, _ := f.orders.GetOrderByID(context.Background(), "order-1")
	assert.Equal(t, models.OrderStatusPaid, order.Status)
}

func TestStripeWebhookDuplicateDelivery(t *testing.T) {
	f := newWebhookFixture()
	f.seedPendingOrder(t, models.ProviderStripe)

	body := stripeEventBody("evt_1", "checkout.session.completed", `{"id":"cs_test_1","payment_intent":"pi_test_1"}`)
	require.NoError(t, f.svc.HandleStripeEvent(context.Background(), body, "sig"))
	require.NoError(t, f.svc.HandleStripeEvent(context.Background(), body, "sig"))

	// the dedup claim short-circuits before the store is touched again
	assert.Equal(t, 1, f.orders.markPaidCalls)
	assert.Len(t, f.publisher.paid, 1)
}

func TestStripeWebhookDedupOutageStillIdempotent(t *testing.T) {
	f := newWebhookFixture()
	f.seedPendingOrder(t, models.ProviderStripe)
	f.dedup.claimErr = fmt.Errorf("redis down")

	body := stripeEventBody("evt_1", "checkout.session.completed", `{"id":"cs_test_1","payment_intent":"pi_test_1"}`)
	require.NoError(t, f.svc.HandleStripeEvent(context.Background(), body, "sig"))
	require.NoError(t, f.svc.HandleStripeEvent(context.Background(), body, "sig"))

	// both deliveries hit the store, only the first one wins
	assert.Equal(t, 2, f.orders.markPaidCalls)
	assert.Len(t, f.publisher.paid, 1)
}

func TestStripeWebhookNoReferenceDuringDedupOutage(t *testing.T) {
	f := newWebhookFixture()
	f.seedPendingOrder(t, models.ProviderStripe)
	f.dedup.claimErr = fmt.Errorf("redis down")

	// an event carrying neither a payment intent nor a session id must
	// surface the missing reference, not the dedup outage
	body := stripeEventBody("evt_9", "checkout.session.completed", `{}`)
	err := f.svc.HandleStripeEvent(context.Background(), body, "sig")

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NotContains(t, err.Error(), "redis down")
}

func TestStripeWebhookIgnoredEventType(t *testing.T) {
	f := newWebhookFixture()
	f.seedPendingOrder(t, models.ProviderStripe)

	body := stripeEventBody("evt_3", "charge.refunded", `{"id":"ch_1"}`)
	require.NoError(t, f.svc.HandleStripeEvent(context.Background(), body, "sig"))

	order, _ := f.orders.GetOrderByID(context.Background(), "order-1")
	assert.Equal(t, models.OrderStatusPending, order.Status)
}

func TestStripeWebhookPaymentFailed(t *testing.T) {
	f := newWebhookFixture()
	f.seedPendingOrder(t, models.ProviderStripe)

	body := stripeEventBody("evt_4", "payment_intent.payment_failed", `{"id":"pi_test_1"}`)
	require.NoError(t, f.svc.HandleStripeEvent(context.Background(), body, "sig"))

	order, _ := f.orders.GetOrderByID(context.Background(), "order-1")
	assert.Equal(t, models.OrderStatusFailed, order.Status)
	assert.Equal(t, "payment_failed", order.FailureReason)
	require.Len(t, f.publisher.failed, 1)
	assert.Empty(t, f.publisher.paid)
}

func TestStripeWebhookUnknownOrder(t *testing.T) {
	f := newWebhookFixture()

	body := stripeEventBody("evt_5", "checkout.session.completed", `{"id":"cs_unknown","payment_intent":"pi_unknown"}`)
	err := f.svc.HandleStripeEvent(context.Background(), body, "sig")

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func razorpayEventBody(event, paymentID, orderID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"captured"}}}}`,
		event, paymentID, orderID))
}

func TestRazorpayWebhookBadSignature(t *testing.T) {
	f := newWebhookFixture()
	f.seedPendingOrder(t, models.ProviderRazorpay)
	f.razorpay.webhookValid = false

	err := f.svc.HandleRazorpayEvent(context.Background(), razorpayEventBody("payment.captured", "pay_1", "order_rzp_1"), "bad")

	assert.ErrorIs(t, err, models.ErrSignatureInvalid)
	order, _ := f.orders.GetOrderByID(context.Background(), "order-1")
	assert.Equal(t, models.OrderStatusPending, order.Status)
}

func TestRazorpayWebhookPaymentCaptured(t *testing.T) {
	f := newWebhookFixture()
	f.seedPendingOrder(t, models.ProviderRazorpay)

	require.NoError(t, f.svc.HandleRazorpayEvent(context.Background(), razorpayEventBody("payment.captured", "pay_1", "order_rzp_1"), "sig"))

	order, _ := f.orders.GetOrderByID(context.Background(), "order-1")
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Equal(t, "pay_1", order.RazorpayPaymentID)
	require.Len(t, f.publisher.paid, 1)
}

func TestRazorpayWebhookIgnoredEvent(t *testing.T) {
	f := newWebhookFixture()
	f.seedPendingOrder(t, models.ProviderRazorpay)

	require.NoError(t, f.svc.HandleRazorpayEvent(context.Background(), razorpayEventBody("payment.authorized", "pay_1", "order_rzp_1"), "sig"))

	order, _ := f.orders.GetOrderByID(context.Background(), "order-1")
	assert.Equal(t, models.OrderStatusPending, order.Status)
}

func TestRazorpayWebhookAfterClientVerify(t *testing.T) {
	f := newWebhookFixture()
	order := f.seedPendingOrder(t, models.ProviderRazorpay)

	// the client verify path already finalized the order
	won, err := f.orders.MarkOrderPaid(context.Background(), order.ID, models.PaymentRefs{
		RazorpayOrderID:   "order_rzp_1",
		RazorpayPaymentID: "pay_1",
	})
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, f.svc.HandleRazorpayEvent(context.Background(), razorpayEventBody("payment.captured", "pay_1", "order_rzp_1"), "sig"))

	assert.Empty(t, f.publisher.paid)
	assert.Equal(t, 0, f.carts.clearCalls)
}
