package service

import (
	"context"
	"errors"
	"testing"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCartFixture() (*CartService, *mockCartStore, *mockProductStore) {
	carts := newMockCartStore()
	products := &mockProductStore{products: map[string]*models.Product{
		"prod-1": {ID: "prod-1", Name: "Espresso Cup", PriceEUR: 10.00, PriceINR: 900.00},
		"prod-2": {ID: "prod-2", Name: "Moka Pot", PriceEUR: 24.50, PriceINR: 2200.00},
	}}
	return NewCartService(carts, products), carts, products
}

func TestCartAddRequiresAuth(t *testing.T) {
	svc, _, _ := newCartFixture()

	_, err := svc.Add(context.Background(), models.Session{}, "prod-1", 1)

	assert.ErrorIs(t, err, models.ErrAuthRequired)
}

func TestCartAddRejectsBadQuantity(t *testing.T) {
	svc, _, _ := newCartFixture()
	session := models.Session{Token: "tok", UserID: "user-1"}

	_, err := svc.Add(context.Background(), session, "prod-1", 0)

	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCartAddUnknownProduct(t *testing.T) {
	svc, carts, _ := newCartFixture()
	session := models.Session{Token: "tok", UserID: "user-1"}

	_, err := svc.Add(context.Background(), session, "prod-missing", 1)

	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Empty(t, carts.itemsByUser["user-1"])
}

func TestCartAddMergesSameProduct(t *testing.T) {
	svc, carts, _ := newCartFixture()
	session := models.Session{Token: "tok", UserID: "user-1"}

	_, err := svc.Add(context.Background(), session, "prod-1", 2)
	require.NoError(t, err)
	view, err := svc.Add(context.Background(), session, "prod-1", 3)
	require.NoError(t, err)

	require.Len(t, carts.itemsByUser["user-1"], 1)
	assert.Equal(t, 5, carts.itemsByUser["user-1"][0].Quantity)
	assert.Equal(t, 5, view.TotalItems)
}

func TestCartListComputesTotalsInBothCurrencies(t *testing.T) {
	svc, carts, products := newCartFixture()
	session := models.Session{Token: "tok", UserID: "user-1"}

	require.NoError(t, carts.UpsertCartItem(context.Background(), "user-1", "prod-1", 2))
	require.NoError(t, carts.UpsertCartItem(context.Background(), "user-1", "prod-2", 1))
	// the store layer joins products in; the mock does it here
	for i := range carts.itemsByUser["user-1"] {
		carts.itemsByUser["user-1"][i].Product = products.products[carts.itemsByUser["user-1"][i].ProductID]
	}

	view, err := svc.List(context.Background(), session)
	require.NoError(t, err)

	assert.Equal(t, 3, view.TotalItems)
	assert.InDelta(t, 44.50, view.Totals.EUR, 0.001)
	assert.InDelta(t, 4000.00, view.Totals.INR, 0.001)
}

func TestCartSetQuantityZeroRemoves(t *testing.T) {
	svc, carts, _ := newCartFixture()
	session := models.Session{Token: "tok", UserID: "user-1"}

	require.NoError(t, carts.UpsertCartItem(context.Background(), "user-1", "prod-1", 2))
	itemID := carts.itemsByUser["user-1"][0].ID

	view, err := svc.SetQuantity(context.Background(), session, itemID, 0)
	require.NoError(t, err)

	assert.Empty(t, view.Items)
	assert.Empty(t, carts.itemsByUser["user-1"])
}

func TestCartSetQuantityUnknownItem(t *testing.T) {
	svc, _, _ := newCartFixture()
	session := models.Session{Token: "tok", UserID: "user-1"}

	_, err := svc.SetQuantity(context.Background(), session, "item-missing", 3)

	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestCartClear(t *testing.T) {
	svc, carts, _ := newCartFixture()
	session := models.Session{Token: "tok", UserID: "user-1"}

	require.NoError(t, carts.UpsertCartItem(context.Background(), "user-1", "prod-1", 2))

	view, err := svc.Clear(context.Background(), session)
	require.NoError(t, err)

	assert.Empty(t, view.Items)
	assert.Equal(t, 0, view.TotalItems)
	assert.Equal(t, 1, carts.clearCalls)
}
