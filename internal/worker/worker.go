package worker

import (
	"context"
	"log"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// NotificationWorker consumes order lifecycle events and sends customer
// notifications. It sits downstream of the idempotent finalization, so an
// OrderPaid event arrives at most once per order and the confirmation email
// cannot double-send.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPaid(w.handleOrderPaid)
	eventHandler.OnOrderFailed(w.handleOrderFailed)
	eventHandler.OnOrderCancelled(w.handleOrderCancelled)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	// Mail delivery is stubbed; the log line stands in for the provider
	// call until the mail service lands.
	w.logger.Info("Sending order confirmation",
		zap.String("order_id", event.OrderID),
		zap.String("email", event.Email),
		zap.String("provider", event.Provider),
		zap.Int64("amount_minor", event.AmountMinor))

	util.OrderConfirmationsSentTotal.Inc()
	return nil
}

func (w *NotificationWorker) handleOrderFailed(ctx context.Context, event *models.OrderFailedEvent) error {
	w.logger.Warn("Order failed, notifying customer",
		zap.String("order_id", event.OrderID),
		zap.String("reason", event.Reason))
	return nil
}

func (w *NotificationWorker) handleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	w.logger.Info("Order cancelled",
		zap.String("order_id", event.OrderID))
	return nil
}
