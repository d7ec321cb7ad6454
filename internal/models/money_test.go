package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(0), ToMinorUnits(0))
	assert.Equal(t, int64(3000), ToMinorUnits(30.00))
	assert.Equal(t, int64(1099), ToMinorUnits(10.99))
	assert.Equal(t, int64(180000), ToMinorUnits(1800.00))
	// values that are not exactly representable still land on the right cent
	assert.Equal(t, int64(10), ToMinorUnits(0.1))
	assert.Equal(t, int64(29), ToMinorUnits(0.29))
	assert.Equal(t, int64(58), ToMinorUnits(0.29*2))
}

func TestPriceSelectsCurrency(t *testing.T) {
	p := &Product{PriceEUR: 10.00, PriceINR: 900.00}

	assert.Equal(t, 10.00, p.Price(CurrencyEUR))
	assert.Equal(t, 900.00, p.Price(CurrencyINR))
}

func TestIsTerminalStatus(t *testing.T) {
	assert.False(t, IsTerminalStatus(OrderStatusPending))
	assert.True(t, IsTerminalStatus(OrderStatusPaid))
	assert.True(t, IsTerminalStatus(OrderStatusCancelled))
	assert.True(t, IsTerminalStatus(OrderStatusFailed))
}
