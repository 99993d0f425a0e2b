package gatewayfake

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/seva-trust/donorportal/payment/gateway"
)

var _ gateway.Gateway = (*Gateway)(nil)

// Outcome is one scripted checkout result.
type Outcome struct {
	Callback gateway.Callback
	Err      error
}

// CheckoutCall records what the flow handed to the gateway.
type CheckoutCall struct {
	Order   gateway.Order
	Prefill gateway.Prefill
}

// Gateway replays scripted outcomes in order and records every checkout it
// was asked to run.
type Gateway struct {
	lock sync.Mutex

	outcomes []Outcome
	Calls    []CheckoutCall
}

// NewGateway returns a fake that replays the given outcomes in order.
func NewGateway(outcomes ...Outcome) *Gateway {
	return &Gateway{outcomes: outcomes}
}

// Succeed is shorthand for a successful checkout outcome.
func Succeed(cb gateway.Callback) Outcome {
	return Outcome{Callback: cb}
}

// Dismiss is shorthand for the payor closing the checkout.
func Dismiss() Outcome {
	return Outcome{Err: gateway.ErrDismissed}
}

// Fail is shorthand for a gateway-reported payment failure.
func Fail(reason string) Outcome {
	return Outcome{Err: &gateway.FailureError{Reason: reason}}
}

func (g *Gateway) Checkout(_ context.Context, order gateway.Order, prefill gateway.Prefill) (gateway.Callback, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	g.Calls = append(g.Calls, CheckoutCall{Order: order, Prefill: prefill})

	if len(g.outcomes) == 0 {
		return gateway.Callback{}, errors.New("fake gateway: no scripted outcome")
	}
	next := g.outcomes[0]
	g.outcomes = g.outcomes[1:]
	return next.Callback, next.Err
}
