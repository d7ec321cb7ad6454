package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-service/internal/gateway"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// WebhookService processes asynchronous provider notifications. Signature
// verification happens before anything else touches an order; irrelevant
// event types are acknowledged without side effects so the provider stops
// retrying them.
type WebhookService struct {
	orders    OrderStore
	stripe    StripeGateway
	razorpay  RazorpayGateway
	dedup     WebhookDedup
	finalizer *OrderFinalizer
	dedupTTL  time.Duration
	logger    *zap.Logger
}

// NewWebhookService creates a new webhook service
func NewWebhookService(
	orders OrderStore,
	stripe StripeGateway,
	razorpay RazorpayGateway,
	dedup WebhookDedup,
	finalizer *OrderFinalizer,
	dedupTTL time.Duration,
) *WebhookService {
	return &WebhookService{
		orders:    orders,
		stripe:    stripe,
		razorpay:  razorpay,
		dedup:     dedup,
		finalizer: finalizer,
		dedupTTL:  dedupTTL,
		logger:    util.GetLogger(),
	}
}

// HandleStripeEvent verifies and processes a Stripe webhook delivery. A bad
// signature returns ErrSignatureInvalid with no order touched. Event types
// that do not finalize anything return nil so the handler acks them.
func (ws *WebhookService) HandleStripeEvent(ctx context.Context, body []byte, sigHeader string) error {
	ctx, span := util.StartSpan(ctx, "WebhookService.HandleStripeEvent")
	defer span.End()

	if err := ws.stripe.VerifyWebhookSignature(body, sigHeader, time.Now()); err != nil {
		util.SignatureFailuresTotal.WithLabelValues("stripe_webhook").Inc()
		util.WebhookEventsTotal.WithLabelValues(models.ProviderStripe, "signature_rejected").Inc()
		ws.logger.Warn("Stripe webhook signature rejected", zap.Error(err))
		return err
	}

	event, err := gateway.ParseStripeEvent(body)
	if err != nil {
		util.WebhookEventsTotal.WithLabelValues(models.ProviderStripe, "malformed").Inc()
		return err
	}

	ws.logger.Info("Stripe webhook received",
		zap.String("event_id", event.ID),
		zap.String("type", event.Type))

	switch event.Type {
	case "checkout.session.completed":
		var session gateway.StripeCheckoutSessionObject
		if err := unmarshalObject(event.Data.Object, &session); err != nil {
			return err
		}
		return ws.finalizeStripe(ctx, event.ID, session.PaymentIntent, session.ID)

	case "payment_intent.succeeded":
		var intent gateway.StripePaymentIntentObject
		if err := unmarshalObject(event.Data.Object, &intent); err != nil {
			return err
		}
		return ws.finalizeStripe(ctx, event.ID, intent.ID, "")

	case "payment_intent.payment_failed":
		var intent gateway.StripePaymentIntentObject
		if err := unmarshalObject(event.Data.Object, &intent); err != nil {
			return err
		}
		return ws.failStripe(ctx, intent.ID)

	default:
		// Acknowledge anything we do not act on, otherwise the provider
		// retries indefinitely.
		util.WebhookEventsTotal.WithLabelValues(models.ProviderStripe, "ignored").Inc()
		return nil
	}
}

// finalizeStripe resolves the order from identifiers inside the signed
// payload and applies the idempotent paid transition. The order is looked
// up by payment intent first, falling back to the checkout session id for
// events that fire before the intent is recorded.
func (ws *WebhookService) finalizeStripe(ctx context.Context, eventID, paymentIntentID, sessionID string) error {
	claimed, claimErr := ws.dedup.ClaimWebhookEvent(ctx, models.ProviderStripe, eventID, ws.dedupTTL)
	if claimErr != nil {
		// The conditional order transition still guards correctness; a
		// dedup outage only costs a redundant no-op attempt.
		ws.logger.Warn("Webhook dedup unavailable, proceeding", zap.Error(claimErr))
	} else if !claimed {
		util.WebhookEventsTotal.WithLabelValues(models.ProviderStripe, "duplicate").Inc()
		ws.logger.Info("Stripe webhook already processed", zap.String("event_id", eventID))
		return nil
	}

	var order *models.Order
	var err error
	if paymentIntentID != "" {
		order, err = ws.orders.GetOrderByPaymentIntent(ctx, paymentIntentID)
	}
	if order == nil && sessionID != "" {
		order, err = ws.orders.GetOrderByStripeSession(ctx, sessionID)
	}
	if err != nil {
		util.WebhookEventsTotal.WithLabelValues(models.ProviderStripe, "order_not_found").Inc()
		return fmt.Errorf("stripe webhook order lookup: %w", err)
	}
	if order == nil {
		util.WebhookEventsTotal.WithLabelValues(models.ProviderStripe, "order_not_found").Inc()
		return fmt.Errorf("stripe webhook carried no usable reference: %w", models.ErrNotFound)
	}

	refs := models.PaymentRefs{StripePaymentIntentID: paymentIntentID}
	if _, err := ws.finalizer.FinalizePaid(ctx, order, refs, "webhook"); err != nil {
		return err
	}

	util.WebhookEventsTotal.WithLabelValues(models.ProviderStripe, "processed").Inc()
	return nil
}

func (ws *WebhookService) failStripe(ctx context.Context, paymentIntentID string) error {
	order, err := ws.orders.GetOrderByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		util.WebhookEventsTotal.WithLabelValues(models.ProviderStripe, "order_not_found").Inc()
		return fmt.Errorf("stripe webhook order lookup: %w", err)
	}

	if _, err := ws.finalizer.FinalizeFailed(ctx, order, "payment_failed"); err != nil {
		return err
	}

	util.WebhookEventsTotal.WithLabelValues(models.ProviderStripe, "processed").Inc()
	return nil
}

// HandleRazorpayEvent verifies and processes a Razorpay webhook delivery.
// Only payment.captured finalizes; the order is resolved by the razorpay
// order id embedded in the signed payload.
func (ws *WebhookService) HandleRazorpayEvent(ctx context.Context, body []byte, signature string) error {
	ctx, span := util.StartSpan(ctx, "WebhookService.HandleRazorpayEvent")
	defer span.End()

	if !ws.razorpay.VerifyWebhookSignature(body, signature) {
		util.SignatureFailuresTotal.WithLabelValues("razorpay_webhook").Inc()
		util.WebhookEventsTotal.WithLabelValues(models.ProviderRazorpay, "signature_rejected").Inc()
		ws.logger.Warn("Razorpay webhook signature rejected")
		return models.ErrSignatureInvalid
	}

	event, err := gateway.ParseRazorpayEvent(body)
	if err != nil {
		util.WebhookEventsTotal.WithLabelValues(models.ProviderRazorpay, "malformed").Inc()
		return err
	}

	ws.logger.Info("Razorpay webhook received", zap.String("event", event.Event))

	if event.Event != "payment.captured" {
		util.WebhookEventsTotal.WithLabelValues(models.ProviderRazorpay, "ignored").Inc()
		return nil
	}

	payment := event.Payload.Payment.Entity
	if payment.OrderID == "" {
		util.WebhookEventsTotal.WithLabelValues(models.ProviderRazorpay, "malformed").Inc()
		return fmt.Errorf("razorpay webhook carried no order reference: %w", models.ErrNotFound)
	}

	claimed, err := ws.dedup.ClaimWebhookEvent(ctx, models.ProviderRazorpay, payment.ID, ws.dedupTTL)
	if err != nil {
		ws.logger.Warn("Webhook dedup unavailable, proceeding", zap.Error(err))
	} else if !claimed {
		util.WebhookEventsTotal.WithLabelValues(models.ProviderRazorpay, "duplicate").Inc()
		return nil
	}

	order, err := ws.orders.GetOrderByRazorpayOrderID(ctx, payment.OrderID)
	if err != nil {
		util.WebhookEventsTotal.WithLabelValues(models.ProviderRazorpay, "order_not_found").Inc()
		return fmt.Errorf("razorpay webhook order lookup: %w", err)
	}

	refs := models.PaymentRefs{
		RazorpayOrderID:   payment.OrderID,
		RazorpayPaymentID: payment.ID,
	}
	if _, err := ws.finalizer.FinalizePaid(ctx, order, refs, "webhook"); err != nil {
		return err
	}

	util.WebhookEventsTotal.WithLabelValues(models.ProviderRazorpay, "processed").Inc()
	return nil
}

func unmarshalObject(raw []byte, dest interface{}) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to decode webhook object: %w", err)
	}
	return nil
}
