package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRazorpayCreatePaymentOrder(t *testing.T) {
	var gotBody razorpayOrderRequest
	var gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/orders", r.URL.Path)
		var ok bool
		gotUser, gotPass, ok = r.BasicAuth()
		require.True(t, ok)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"id":"order_rzp_1","amount":180000,"currency":"INR"}`)
	}))
	defer server.Close()

	client := NewRazorpayClient("rzp_test_key", "rzp_secret", "whsec", server.URL, 5*time.Second)

	order, err := client.CreatePaymentOrder(context.Background(), 180000, models.CurrencyINR, "order-1")
	require.NoError(t, err)

	assert.Equal(t, "order_rzp_1", order.ProviderOrderID)
	assert.Equal(t, int64(180000), order.Amount)
	assert.Equal(t, models.CurrencyINR, order.Currency)

	assert.Equal(t, "rzp_test_key", gotUser)
	assert.Equal(t, "rzp_secret", gotPass)
	assert.Equal(t, int64(180000), gotBody.Amount)
	assert.Equal(t, "INR", gotBody.Currency)
	assert.Equal(t, "order-1", gotBody.Receipt)
}

func TestRazorpayCreatePaymentOrderRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"description":"amount too small"}}`)
	}))
	defer server.Close()

	client := NewRazorpayClient("rzp_test_key", "rzp_secret", "whsec", server.URL, 5*time.Second)

	_, err := client.CreatePaymentOrder(context.Background(), 1, models.CurrencyINR, "order-1")

	assert.ErrorIs(t, err, models.ErrGatewayUnavailable)
}

func TestRazorpayVerifyPaymentSignature(t *testing.T) {
	client := NewRazorpayClient("rzp_test_key", "rzp_secret", "whsec", "https://api.razorpay.com", 5*time.Second)

	valid := computeHMAC("rzp_secret", []byte("order_rzp_1|pay_1"))

	assert.True(t, client.VerifyPaymentSignature("order_rzp_1", "pay_1", valid))
	assert.False(t, client.VerifyPaymentSignature("order_rzp_1", "pay_1", "deadbeef"))
	assert.False(t, client.VerifyPaymentSignature("order_rzp_1", "pay_2", valid))
	// a signature minted for another order must not transfer
	assert.False(t, client.VerifyPaymentSignature("order_rzp_2", "pay_1", valid))
	assert.False(t, client.VerifyPaymentSignature("order_rzp_1", "pay_1", ""))
}

func TestRazorpayVerifyWebhookSignature(t *testing.T) {
	client := NewRazorpayClient("rzp_test_key", "rzp_secret", "whsec", "https://api.razorpay.com", 5*time.Second)

	body := []byte(`{"event":"payment.captured"}`)
	valid := computeHMAC("whsec", body)

	assert.True(t, client.VerifyWebhookSignature(body, valid))
	assert.False(t, client.VerifyWebhookSignature([]byte(`{"event":"tampered"}`), valid))
	assert.False(t, client.VerifyWebhookSignature(body, ""))
}

func TestParseRazorpayEvent(t *testing.T) {
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_rzp_1","status":"captured"}}}}`)

	event, err := ParseRazorpayEvent(body)
	require.NoError(t, err)

	assert.Equal(t, "payment.captured", event.Event)
	assert.Equal(t, "pay_1", event.Payload.Payment.Entity.ID)
	assert.Equal(t, "order_rzp_1", event.Payload.Payment.Entity.OrderID)
	assert.Equal(t, "captured", event.Payload.Payment.Entity.Status)
}
