package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// StripeClient drives the hosted-checkout redirect flow. Authorization
// happens entirely on the provider's page; the outcome comes back on the
// webhook.
type StripeClient struct {
	httpClient    *http.Client
	apiKey        string
	webhookSecret string
	baseURL       string
	appBaseURL    string
	tolerance     time.Duration
	logger        *zap.Logger
}

// NewStripeClient creates a Stripe gateway adapter
func NewStripeClient(apiKey, webhookSecret, baseURL, appBaseURL string, timeout, tolerance time.Duration) *StripeClient {
	return &StripeClient{
		httpClient:    newHTTPClient(timeout),
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		baseURL:       strings.TrimRight(baseURL, "/"),
		appBaseURL:    strings.TrimRight(appBaseURL, "/"),
		tolerance:     tolerance,
		logger:        util.GetLogger(),
	}
}

type stripeSessionResponse struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
}

// CreateCheckoutSession creates a hosted checkout session for a pending
// order. Line item amounts are the order's snapshot minor units; the order
// id rides along in metadata, and the success/cancel URLs carry the session
// id so the landing pages can resolve the order without trusting client
// state.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, order *models.Order, items []models.OrderItem) (*CheckoutSession, error) {
	ctx, span := util.StartSpan(ctx, "StripeClient.CreateCheckoutSession")
	defer span.End()

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("success_url", c.appBaseURL+"/order-confirmation?session_id={CHECKOUT_SESSION_ID}")
	form.Set("cancel_url", c.appBaseURL+"/checkout-cancelled?session_id={CHECKOUT_SESSION_ID}")
	form.Set("metadata[order_id]", order.ID)

	for i, item := range items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
		form.Set(prefix+"[price_data][currency]", strings.ToLower(order.Currency))
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitMinor, 10))
		form.Set(prefix+"[price_data][product_data][name]", item.ProductName)
		if item.ImageURL != "" {
			form.Set(prefix+"[price_data][product_data][images][0]", item.ImageURL)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

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
		c.logger.Error("Stripe session creation rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("order_id", order.ID))
		return nil, fmt.Errorf("%w: stripe returned status %d", models.ErrGatewayUnavailable, resp.StatusCode)
	}

	var session stripeSessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrGatewayUnavailable, err)
	}

	return &CheckoutSession{
		SessionID:       session.ID,
		PaymentIntentID: session.PaymentIntent,
		RedirectURL:     session.URL,
	}, nil
}

// VerifyWebhookSignature checks a Stripe-Signature header against the raw
// webhook body. The header carries a timestamp and one or more v1 HMACs
// over "<timestamp>.<body>"; the timestamp must be within the tolerance
// window to stop replays.
func (c *StripeClient) VerifyWebhookSignature(body []byte, sigHeader string, now time.Time) error {
	timestamp, signatures, err := parseStripeSigHeader(sigHeader)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrSignatureInvalid, err)
	}

	ts := time.Unix(timestamp, 0)
	if c.tolerance > 0 {
		age := now.Sub(ts)
		if age < 0 {
			age = -age
		}
		if age > c.tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", models.ErrSignatureInvalid)
		}
	}

	signed := strconv.FormatInt(timestamp, 10) + "." + string(body)
	expected := computeHMAC(c.webhookSecret, []byte(signed))

	for _, sig := range signatures {
		if secureCompare(expected, sig) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching v1 signature", models.ErrSignatureInvalid)
}

func parseStripeSigHeader(header string) (int64, []string, error) {
	if header == "" {
		return 0, nil, fmt.Errorf("empty signature header")
	}

	var timestamp int64 = -1
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("malformed timestamp")
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp < 0 || len(signatures) == 0 {
		return 0, nil, fmt.Errorf("missing timestamp or v1 signature")
	}
	return timestamp, signatures, nil
}

// StripeEvent is the envelope of a webhook notification. Data.Object is
// decoded per event type.
type StripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// StripeCheckoutSessionObject is the object inside checkout.session.* events
type StripeCheckoutSessionObject struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
}

// StripePaymentIntentObject is the object inside payment_intent.* events
type StripePaymentIntentObject struct {
	ID string `json:"id"`
}

// ParseStripeEvent decodes a verified webhook body
func ParseStripeEvent(body []byte) (*StripeEvent, error) {
	var event StripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to parse stripe event: %w", err)
	}
	return &event, nil
}
