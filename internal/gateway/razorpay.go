package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// RazorpayClient drives the embedded payment-sheet flow. The browser
// collects payment against a provider-side order and hands back a signed
// (order id, payment id) pair that must be re-verified server side with the
// key secret before the order is finalized.
type RazorpayClient struct {
	httpClient    *http.Client
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	logger        *zap.Logger
}

// NewRazorpayClient creates a Razorpay gateway adapter
func NewRazorpayClient(keyID, keySecret, webhookSecret, baseURL string, timeout time.Duration) *RazorpayClient {
	return &RazorpayClient{
		httpClient:    newHTTPClient(timeout),
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		baseURL:       strings.TrimRight(baseURL, "/"),
		logger:        util.GetLogger(),
	}
}

// KeyID returns the public key id the payment sheet needs
func (c *RazorpayClient) KeyID() string {
	return c.keyID
}

type razorpayOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// CreatePaymentOrder opens a provider-side order for the given amount in
// minor units. The receipt carries our order id back on provider records.
func (c *RazorpayClient) CreatePaymentOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*PaymentOrder, error) {
	ctx, span := util.StartSpan(ctx, "RazorpayClient.CreatePaymentOrder")
	defer span.End()

	payload, err := json.Marshal(razorpayOrderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrGatewayUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Razorpay order creation rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("receipt", receipt))
		return nil, fmt.Errorf("%w: razorpay returned status %d", models.ErrGatewayUnavailable, resp.StatusCode)
	}

	var order razorpayOrderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrGatewayUnavailable, err)
	}

	return &PaymentOrder{
		ProviderOrderID: order.ID,
		Amount:          order.Amount,
		Currency:        order.Currency,
	}, nil
}

// VerifyPaymentSignature recomputes the HMAC over "<order_id>|<payment_id>"
// with the key secret and compares it against the client-supplied signature
// in constant time. The client value is never trusted on its own.
func (c *RazorpayClient) VerifyPaymentSignature(razorpayOrderID, razorpayPaymentID, signature string) bool {
	expected := computeHMAC(c.keySecret, []byte(razorpayOrderID+"|"+razorpayPaymentID))
	return secureCompare(expected, signature)
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header, an HMAC
// over the raw webhook body under the webhook secret.
func (c *RazorpayClient) VerifyWebhookSignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	expected := computeHMAC(c.webhookSecret, body)
	return secureCompare(expected, signature)
}

// RazorpayEvent is the envelope of a webhook notification
type RazorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity RazorpayPaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// RazorpayPaymentEntity is the payment object inside payment.* events
type RazorpayPaymentEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// ParseRazorpayEvent decodes a verified webhook body
func ParseRazorpayEvent(body []byte) (*RazorpayEvent, error) {
	var event RazorpayEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to parse razorpay event: %w", err)
	}
	return &event, nil
}
