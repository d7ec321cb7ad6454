package service

import (
	"context"
	"fmt"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// CartService handles cart business logic. Every mutation re-reads the full
// cart afterwards; the returned view is always the authoritative backend
// state, never a local projection of the mutation.
type CartService struct {
	carts    CartStore
	products ProductStore
	logger   *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(carts CartStore, products ProductStore) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		logger:   util.GetLogger(),
	}
}

// CartView is the authoritative cart state returned by every operation
type CartView struct {
	Items      []models.CartItem `json:"items"`
	TotalItems int               `json:"total_items"`
	Totals     models.CartTotals `json:"totals"`
}

// Add puts quantity of a product into the cart, merging with an existing
// (user, product) row
func (s *CartService) Add(ctx context.Context, session models.Session, productID string, quantity int) (*CartView, error) {
	if !session.Authenticated() {
		return nil, models.ErrAuthRequired
	}
	if quantity < 1 {
		return nil, models.ValidationError("quantity", "must be at least 1")
	}

	if _, err := s.products.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}

	if err := s.carts.UpsertCartItem(ctx, session.UserID, productID, quantity); err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	util.CartMutationsTotal.WithLabelValues("add").Inc()
	return s.List(ctx, session)
}

// SetQuantity sets the quantity of a cart row. A non-positive quantity
// removes the row.
func (s *CartService) SetQuantity(ctx context.Context, session models.Session, itemID string, quantity int) (*CartView, error) {
	if !session.Authenticated() {
		return nil, models.ErrAuthRequired
	}

	if quantity <= 0 {
		return s.Remove(ctx, session, itemID)
	}

	if err := s.carts.UpdateCartQuantity(ctx, session.UserID, itemID, quantity); err != nil {
		return nil, err
	}

	util.CartMutationsTotal.WithLabelValues("set_quantity").Inc()
	return s.List(ctx, session)
}

// Remove deletes a cart row
func (s *CartService) Remove(ctx context.Context, session models.Session, itemID string) (*CartView, error) {
	if !session.Authenticated() {
		return nil, models.ErrAuthRequired
	}

	if err := s.carts.RemoveCartItem(ctx, session.UserID, itemID); err != nil {
		return nil, err
	}

	util.CartMutationsTotal.WithLabelValues("remove").Inc()
	return s.List(ctx, session)
}

// Clear empties the cart
func (s *CartService) Clear(ctx context.Context, session models.Session) (*CartView, error) {
	if !session.Authenticated() {
		return nil, models.ErrAuthRequired
	}

	if err := s.carts.ClearCart(ctx, session.UserID); err != nil {
		return nil, err
	}

	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	return s.List(ctx, session)
}

// List returns the current cart with totals recomputed from the rows on
// every call
func (s *CartService) List(ctx context.Context, session models.Session) (*CartView, error) {
	if !session.Authenticated() {
		return nil, models.ErrAuthRequired
	}

	items, err := s.carts.GetCartItems(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	view := &CartView{Items: items}
	for _, item := range items {
		view.TotalItems += item.Quantity
		if item.Product != nil {
			view.Totals.EUR += item.Product.PriceEUR * float64(item.Quantity)
			view.Totals.INR += item.Product.PriceINR * float64(item.Quantity)
		}
	}

	return view, nil
}
