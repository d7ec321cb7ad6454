package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-service/internal/models"
)

// CreateOrder inserts a pending order and its line item snapshots in one
// transaction. Unit prices are the values passed in, never re-read from the
// catalog afterwards.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (
			id, user_id, status, currency, total_amount, amount_minor,
			payment_provider, idempotency_key,
			email, first_name, last_name, phone,
			billing_address, billing_city, billing_postal_code, billing_country,
			shipping_address, shipping_city, shipping_postal_code, shipping_country
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)
		RETURNING created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		order.ID, order.UserID, order.Status, order.Currency, order.TotalAmount, order.AmountMinor,
		order.PaymentProvider, order.IdempotencyKey,
		order.Email, order.FirstName, order.LastName, order.Phone,
		order.BillingAddress, order.BillingCity, order.BillingPostalCode, order.BillingCountry,
		order.ShippingAddress, order.ShippingCity, order.ShippingPostalCode, order.ShippingCountry,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, product_name, image_url, quantity, unit_price, unit_minor)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	for i := range items {
		items[i].OrderID = order.ID
		err = tx.QueryRowxContext(ctx, itemQuery,
			items[i].OrderID, items[i].ProductID, items[i].ProductName, items[i].ImageURL,
			items[i].Quantity, items[i].UnitPrice, items[i].UnitMinor,
		).Scan(&items[i].ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	return s.getOrderBy(ctx, "id", id)
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key, or nil if
// no order carries the key
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByStripeSession resolves an order by its Stripe checkout session id
func (s *Store) GetOrderByStripeSession(ctx context.Context, sessionID string) (*models.Order, error) {
	return s.getOrderBy(ctx, "stripe_session_id", sessionID)
}

// GetOrderByPaymentIntent resolves an order by its Stripe payment intent id
func (s *Store) GetOrderByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error) {
	return s.getOrderBy(ctx, "stripe_payment_intent_id", intentID)
}

// GetOrderByRazorpayOrderID resolves an order by its Razorpay order id
func (s *Store) GetOrderByRazorpayOrderID(ctx context.Context, razorpayOrderID string) (*models.Order, error) {
	return s.getOrderBy(ctx, "razorpay_order_id", razorpayOrderID)
}

func (s *Store) getOrderBy(ctx context.Context, column, value string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		fmt.Sprintf("SELECT * FROM orders WHERE %s = $1", column), value)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order with %s=%s: %w", column, value, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUser retrieves orders for a user, newest first
func (s *Store) GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// GetOrderItems retrieves all line items for an order
func (s *Store) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// AttachStripeSession records the Stripe session and payment intent ids on a
// pending order after session creation
func (s *Store) AttachStripeSession(ctx context.Context, orderID, sessionID, paymentIntentID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET stripe_session_id = $1, stripe_payment_intent_id = $2, updated_at = NOW() WHERE id = $3",
		sessionID, paymentIntentID, orderID)
	return err
}

// AttachRazorpayOrder records the Razorpay order id on a pending order
func (s *Store) AttachRazorpayOrder(ctx context.Context, orderID, razorpayOrderID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET razorpay_order_id = $1, updated_at = NOW() WHERE id = $2",
		razorpayOrderID, orderID)
	return err
}

// MarkOrderPaid transitions a pending order to paid with a single
// conditional UPDATE, so two racing finalization paths cannot both win.
// Returns true when this call performed the transition. A repeat call
// against an already-paid order is a no-op returning false; a call against
// any other terminal state returns a StateTransitionError.
func (s *Store) MarkOrderPaid(ctx context.Context, orderID string, refs models.PaymentRefs) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET
			status = $2,
			stripe_payment_intent_id = COALESCE(NULLIF($3, ''), stripe_payment_intent_id),
			razorpay_order_id = COALESCE(NULLIF($4, ''), razorpay_order_id),
			razorpay_payment_id = COALESCE(NULLIF($5, ''), razorpay_payment_id),
			updated_at = NOW()
		WHERE id = $1 AND status = $6`,
		orderID, models.OrderStatusPaid,
		refs.StripePaymentIntentID, refs.RazorpayOrderID, refs.RazorpayPaymentID,
		models.OrderStatusPending)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 1 {
		return true, nil
	}

	return false, s.checkTerminal(ctx, orderID, models.OrderStatusPaid)
}

// MarkOrderFailed transitions a pending order to failed. Same conditional
// semantics as MarkOrderPaid.
func (s *Store) MarkOrderFailed(ctx context.Context, orderID, reason string) (bool, error) {
	return s.markTerminal(ctx, orderID, models.OrderStatusFailed, reason)
}

// MarkOrderCancelled transitions a pending order to cancelled (user aborted
// the hosted checkout flow)
func (s *Store) MarkOrderCancelled(ctx context.Context, orderID string) (bool, error) {
	return s.markTerminal(ctx, orderID, models.OrderStatusCancelled, "")
}

func (s *Store) markTerminal(ctx context.Context, orderID, status, reason string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, failure_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4`,
		orderID, status, reason, models.OrderStatusPending)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 1 {
		return true, nil
	}

	return false, s.checkTerminal(ctx, orderID, status)
}

// checkTerminal inspects an order that refused a conditional transition.
// Same terminal state already in place means the transition was a duplicate;
// anything else is a conflicting transition.
func (s *Store) checkTerminal(ctx context.Context, orderID, wanted string) error {
	var current string
	err := s.db.GetContext(ctx, &current, "SELECT status FROM orders WHERE id = $1", orderID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if current == wanted {
		return nil
	}
	return &models.StateTransitionError{OrderID: orderID, From: current, To: wanted}
}
