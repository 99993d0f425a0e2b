// Package gateway abstracts the external hosted checkout. The handoff is a
// single awaited call that resolves on exactly one of success, failure, or
// dismissal, which keeps the payment flow's state machine exhaustively
// checkable. The checkout provider's own callback-object API offers three
// independent handler slots instead.
package gateway

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// DefaultScriptURL is the CDN location of the provider's embedded checkout
// script, loaded on demand when the hosted page does not already carry it.
const DefaultScriptURL = "https://checkout.razorpay.com/v1/checkout.js"

// Defaults for the checkout session. The session expires after MaxAge; the
// provider retries its own transient failures up to RetryCount times,
// opaquely to the caller.
const (
	DefaultMaxAge     = 900 * time.Second
	DefaultRetryCount = 4
	DefaultThemeColor = "#0f766e"
)

// ErrDismissed is returned when the payor closes the checkout UI before
// completing payment.
var ErrDismissed = errors.New("checkout dismissed")

// FailureError carries the gateway's own human-readable reason for a failed
// payment. Distinct from dismissal: the payor tried and the gateway refused.
type FailureError struct {
	Reason string
	Code   string
}

func (e *FailureError) Error() string {
	if e.Reason == "" {
		return "payment failed"
	}
	return e.Reason
}

// Order identifies one server-created payment attempt to the gateway.
type Order struct {
	ID       string
	Amount   int64 // minor currency units
	Currency string
	Key      string // gateway key id the checkout is opened with
}

// Prefill is the payor identity injected into the checkout form. Fields are
// rendered read-only so they cannot be tampered with between order creation
// and payment.
type Prefill struct {
	Name  string
	Email string
	Phone string
}

// Callback is the gateway's success payload: the values the backend needs
// for signature verification. The client never validates the signature.
type Callback struct {
	PaymentID string `json:"razorpay_payment_id"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
}

// Options configures a checkout session.
type Options struct {
	KeyID      string
	ScriptURL  string
	MaxAge     time.Duration
	RetryCount int
	ThemeColor string
}

// WithDefaults fills unset fields with the package defaults.
func (o Options) WithDefaults() Options {
	if o.ScriptURL == "" {
		o.ScriptURL = DefaultScriptURL
	}
	if o.MaxAge <= 0 {
		o.MaxAge = DefaultMaxAge
	}
	if o.RetryCount <= 0 {
		o.RetryCount = DefaultRetryCount
	}
	if o.ThemeColor == "" {
		o.ThemeColor = DefaultThemeColor
	}
	return o
}

// Gateway hands one order to the external checkout and waits for its single
// outcome: (Callback, nil) on success, ErrDismissed when the payor closes
// the UI, *FailureError when the gateway reports a failed payment. The wait
// has no client-side timeout beyond the gateway's own configured session
// age; ctx cancellation aborts the wait.
type Gateway interface {
	Checkout(ctx context.Context, order Order, prefill Prefill) (Callback, error)
}
