package store

import (
	"context"
	"fmt"

	"storefront-service/internal/models"
)

// UpsertCartItem adds quantity to an existing (user, product) row or inserts
// a new one. Merging happens in the database so concurrent adds cannot
// produce duplicate rows.
func (s *Store) UpsertCartItem(ctx context.Context, userID, productID string, quantity int) error {
	query := `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query, userID, productID, quantity)
	return err
}

// UpdateCartQuantity sets the quantity of a cart row
func (s *Store) UpdateCartQuantity(ctx context.Context, userID, itemID string, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3",
		quantity, itemID, userID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("cart item %s: %w", itemID, models.ErrNotFound)
	}
	return nil
}

// RemoveCartItem deletes a cart row scoped to its owner
func (s *Store) RemoveCartItem(ctx context.Context, userID, itemID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE id = $1 AND user_id = $2", itemID, userID)
	return err
}

// ClearCart deletes all cart rows for a user
func (s *Store) ClearCart(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	return err
}

// GetCartItems retrieves the full cart for a user with products attached
func (s *Store) GetCartItems(ctx context.Context, userID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM cart_items WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []models.CartItem{}, nil
	}

	productIDs := make([]string, len(items))
	for i, item := range items {
		productIDs[i] = item.ProductID
	}

	products, err := s.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	productMap := make(map[string]*models.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}

	for i := range items {
		items[i].Product = productMap[items[i].ProductID]
	}

	return items, nil
}
