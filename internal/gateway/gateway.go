package gateway

import (
	"net/http"
	"time"
)

// CheckoutSession is the result of creating a hosted checkout session with
// the redirect provider. The caller sends the browser to RedirectURL; the
// provider reports the outcome on the webhook, not synchronously.
type CheckoutSession struct {
	SessionID       string
	PaymentIntentID string
	RedirectURL     string
}

// PaymentOrder is the result of opening a provider-side order for the
// embedded payment sheet flow. Amount is in minor units.
type PaymentOrder struct {
	ProviderOrderID string
	Amount          int64
	Currency        string
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
