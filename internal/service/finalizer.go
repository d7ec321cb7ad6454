package service

import (
	"context"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderFinalizer applies terminal transitions and their side effects. Both
// finalization paths (client verify and provider webhook) funnel through it,
// so the conditional UPDATE in the store is the only arbiter of which path
// wins, and side effects run only on the winning path.
type OrderFinalizer struct {
	orders    OrderStore
	carts     CartStore
	publisher EventPublisher
	logger    *zap.Logger
}

// NewOrderFinalizer creates a new order finalizer
func NewOrderFinalizer(orders OrderStore, carts CartStore, publisher EventPublisher) *OrderFinalizer {
	return &OrderFinalizer{
		orders:    orders,
		carts:     carts,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// FinalizePaid transitions an order to paid. Returns true when this call won
// the transition; a duplicate of an already-paid order returns false with no
// error and no side effects. Cart clearing and the OrderPaid event happen
// only on the winning call, and only after the transition is durable.
func (f *OrderFinalizer) FinalizePaid(ctx context.Context, order *models.Order, refs models.PaymentRefs, path string) (bool, error) {
	won, err := f.orders.MarkOrderPaid(ctx, order.ID, refs)
	if err != nil {
		return false, err
	}
	if !won {
		util.DuplicateFinalizationsTotal.WithLabelValues(path).Inc()
		f.logger.Info("Order already paid, finalization is a no-op",
			zap.String("order_id", order.ID),
			zap.String("path", path))
		return false, nil
	}

	util.OrdersPaidTotal.WithLabelValues(order.PaymentProvider, path).Inc()
	f.logger.Info("Order paid",
		zap.String("order_id", order.ID),
		zap.String("provider", order.PaymentProvider),
		zap.String("path", path))

	if err := f.carts.ClearCart(ctx, order.UserID); err != nil {
		f.logger.Error("Failed to clear cart after payment",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}

	providerRef := refs.StripePaymentIntentID
	if providerRef == "" {
		providerRef = refs.RazorpayPaymentID
	}

	event := &models.OrderPaidEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPaid,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		UserID:      order.UserID,
		Email:       order.Email,
		Provider:    order.PaymentProvider,
		Currency:    order.Currency,
		AmountMinor: order.AmountMinor,
		ProviderRef: providerRef,
	}
	if err := f.publisher.PublishOrderPaid(ctx, event); err != nil {
		f.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
	}

	return true, nil
}

// FinalizeFailed transitions an order to failed
func (f *OrderFinalizer) FinalizeFailed(ctx context.Context, order *models.Order, reason string) (bool, error) {
	won, err := f.orders.MarkOrderFailed(ctx, order.ID, reason)
	if err != nil {
		return false, err
	}
	if !won {
		util.DuplicateFinalizationsTotal.WithLabelValues("failed").Inc()
		return false, nil
	}

	util.OrdersFailedTotal.WithLabelValues(reason).Inc()
	f.logger.Warn("Order failed",
		zap.String("order_id", order.ID),
		zap.String("reason", reason))

	event := &models.OrderFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderFailed,
			Timestamp: time.Now(),
		},
		OrderID: order.ID,
		UserID:  order.UserID,
		Reason:  reason,
	}
	if err := f.publisher.PublishOrderFailed(ctx, event); err != nil {
		f.logger.Error("Failed to publish OrderFailed event", zap.Error(err))
	}

	return true, nil
}

// FinalizeCancelled transitions an order to cancelled (user abandoned the
// hosted flow)
func (f *OrderFinalizer) FinalizeCancelled(ctx context.Context, order *models.Order) (bool, error) {
	won, err := f.orders.MarkOrderCancelled(ctx, order.ID)
	if err != nil {
		return false, err
	}
	if !won {
		util.DuplicateFinalizationsTotal.WithLabelValues("cancel").Inc()
		return false, nil
	}

	util.OrdersCancelledTotal.Inc()
	f.logger.Info("Order cancelled", zap.String("order_id", order.ID))

	event := &models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCancelled,
			Timestamp: time.Now(),
		},
		OrderID: order.ID,
		UserID:  order.UserID,
	}
	if err := f.publisher.PublishOrderCancelled(ctx, event); err != nil {
		f.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}

	return true, nil
}
