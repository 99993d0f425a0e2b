// Package payment drives a single payment attempt end to end: order
// creation against the backend, handoff to the checkout gateway, and
// signature verification of the gateway callback. The flow is a small
// state machine; observers subscribe to snapshots the same way session
// observers do.
package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seva-trust/donorportal/api"
	"github.com/seva-trust/donorportal/payment/gateway"
	"github.com/seva-trust/donorportal/users"
)

// DefaultCurrency is used when no currency override is configured.
const DefaultCurrency = "INR"

// State is the position of the flow in a payment attempt.
type State int

const (
	StateIdle State = iota
	StateCreatingOrder
	StateWaitingPayment
	StateVerifying
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCreatingOrder:
		return "creating-order"
	case StateWaitingPayment:
		return "waiting-payment"
	case StateVerifying:
		return "verifying"
	case StateCompleted:
		return "completed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Order is the backend-issued order a gateway attempt runs against.
type Order struct {
	OrderID    string
	Amount     int64
	Currency   string
	GatewayKey string
}

// Receipt is the outcome of a completed attempt.
type Receipt struct {
	DonationID string
	PaymentID  string
	OrderID    string
}

// Snapshot is an immutable view of the flow handed to subscribers.
type Snapshot struct {
	State   State
	Order   *Order
	Receipt *Receipt
	Message string
}

// Flow runs payment attempts. One attempt at a time; a second call while
// an attempt is live returns ErrAttemptInProgress.
type Flow struct {
	client   *api.Client
	gw       gateway.Gateway
	currency string
	log      zerolog.Logger
	nowFunc  func() time.Time
	profile  func() *users.User

	mu        sync.Mutex
	state     State
	order     *Order
	receipt   *Receipt
	message   string
	subs      map[int]func(Snapshot)
	nextSubID int
}

// Option configures a Flow.
type Option func(*Flow)

// WithLogger sets the flow logger.
func WithLogger(log zerolog.Logger) Option {
	return func(f *Flow) { f.log = log }
}

// WithCurrency overrides the order currency.
func WithCurrency(code string) Option {
	return func(f *Flow) {
		if code != "" {
			f.currency = code
		}
	}
}

// WithNowFunc overrides the clock used for manual payment identifiers.
func WithNowFunc(now func() time.Time) Option {
	return func(f *Flow) { f.nowFunc = now }
}

// WithProfileSource supplies the signed-in user whose details prefill
// blank form fields. The source may return nil.
func WithProfileSource(src func() *users.User) Option {
	return func(f *Flow) { f.profile = src }
}

// New creates an idle Flow over the given backend client and gateway.
func New(client *api.Client, gw gateway.Gateway, options ...Option) *Flow {
	f := &Flow{
		client:   client,
		gw:       gw,
		currency: DefaultCurrency,
		log:      zerolog.Nop(),
		nowFunc:  time.Now,
		state:    StateIdle,
		subs:     map[int]func(Snapshot){},
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// Snapshot returns the current flow state.
func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// State returns just the current state tag.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Subscribe registers fn for state changes and returns an unsubscribe
// func. fn is called outside the flow lock.
func (f *Flow) Subscribe(fn func(Snapshot)) func() {
	f.mu.Lock()
	id := f.nextSubID
	f.nextSubID++
	f.subs[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// Reset returns the flow to idle, discarding any completed receipt or
// leftover message. It is a no-op guard against nothing; callable from
// any state.
func (f *Flow) Reset() {
	f.set(StateIdle, nil, nil, "")
}

// ProcessPayment runs a full online attempt: create an order, hand off to
// the gateway, verify the callback signature server-side. form.Amount is
// in minor currency units. On any failure the flow returns to idle with a
// display message and the error describes why.
func (f *Flow) ProcessPayment(ctx context.Context, form FormData) (*Receipt, error) {
	if f.profile != nil {
		form = form.FillFrom(f.profile())
	}
	if verr := form.validate(); verr != nil {
		return nil, verr
	}
	if err := f.begin(); err != nil {
		return nil, err
	}

	attempt := uuid.NewString()
	log := f.log.With().Str("attempt", attempt).Logger()
	log.Debug().Int64("amount", form.Amount).Str("payment_for", form.PaymentFor).Msg("creating payment order")

	initResp, err := f.client.PaymentInit(ctx, api.PaymentInitRequest{
		Name:       form.Name,
		Email:      form.Email,
		Phone:      form.Phone,
		Amount:     form.Amount,
		PaymentFor: form.PaymentFor,
		Notes:      form.Notes,
		Currency:   f.currency,
	})
	if err != nil {
		log.Warn().Err(err).Msg("order creation failed")
		return nil, f.fail(f.orderError(err))
	}
	if initResp.OrderID == "" {
		log.Warn().Msg("order creation returned no order id")
		return nil, f.fail(&FlowError{Kind: KindUnknown, Message: MsgOrderFailed})
	}

	order := &Order{
		OrderID:    initResp.OrderID,
		Amount:     initResp.Amount,
		Currency:   initResp.Currency,
		GatewayKey: initResp.Key,
	}
	if order.Amount == 0 {
		order.Amount = form.Amount
	}
	if order.Currency == "" {
		order.Currency = f.currency
	}
	f.set(StateWaitingPayment, order, nil, "")

	cb, err := f.gw.Checkout(ctx, gateway.Order{
		ID:       order.OrderID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Key:      order.GatewayKey,
	}, gateway.Prefill{Name: form.Name, Email: form.Email, Phone: form.Phone})
	if err != nil {
		// The order is discarded with the attempt; a retry creates a
		// fresh one.
		var gwErr *gateway.FailureError
		switch {
		case errors.Is(err, gateway.ErrDismissed):
			log.Debug().Str("order_id", order.OrderID).Msg("checkout dismissed")
			return nil, f.fail(&FlowError{Kind: KindGateway, Message: MsgPaymentCancelled})
		case errors.As(err, &gwErr):
			log.Warn().Str("order_id", order.OrderID).Str("code", gwErr.Code).Msg("checkout failed")
			return nil, f.fail(&FlowError{Kind: KindGateway, Message: gwErr.Reason})
		default:
			log.Warn().Err(err).Str("order_id", order.OrderID).Msg("checkout aborted")
			return nil, f.fail(&FlowError{Kind: KindNetwork, Message: api.NetworkErrorMessage})
		}
	}

	f.set(StateVerifying, order, nil, "")
	log.Debug().Str("order_id", order.OrderID).Str("payment_id", cb.PaymentID).Msg("verifying payment")

	verifyResp, err := f.client.PaymentVerify(ctx, api.PaymentVerifyRequest{
		OrderID:   cb.OrderID,
		PaymentID: cb.PaymentID,
		Signature: cb.Signature,
	})
	if err != nil {
		log.Warn().Err(err).Str("order_id", order.OrderID).Msg("verification request failed")
		return nil, f.fail(&FlowError{Kind: KindVerification, Message: verifyMessage(err)})
	}
	if !verifyResp.PaymentVerified {
		msg := verifyResp.Message
		if msg == "" {
			msg = MsgVerificationFailed
		}
		log.Warn().Str("order_id", order.OrderID).Msg("verification rejected")
		return nil, f.fail(&FlowError{Kind: KindVerification, Message: msg})
	}

	receipt := &Receipt{
		DonationID: verifyResp.DonationID,
		PaymentID:  cb.PaymentID,
		OrderID:    order.OrderID,
	}
	f.set(StateCompleted, order, receipt, "")
	log.Info().Str("donation_id", receipt.DonationID).Str("order_id", receipt.OrderID).Msg("payment completed")
	return receipt, nil
}

// ManualPayment records an offline payment directly, skipping the
// gateway. form.Amount is in major currency units and is converted to
// minor units for the backend. Requires elevated backend privileges; a
// 403 surfaces as a permission error.
func (f *Flow) ManualPayment(ctx context.Context, form FormData) (*Receipt, error) {
	if f.profile != nil {
		form = form.FillFrom(f.profile())
	}
	if verr := form.validate(); verr != nil {
		return nil, verr
	}
	if err := f.begin(); err != nil {
		return nil, err
	}

	ts := f.nowFunc().UnixMilli()
	orderID := fmt.Sprintf("order_manual_%d", ts)
	paymentID := fmt.Sprintf("pay_manual_%d", ts)
	log := f.log.With().Str("order_id", orderID).Logger()
	log.Debug().Int64("amount", form.Amount).Msg("recording manual payment")

	resp, err := f.client.PaymentCreate(ctx, api.PaymentCreateRequest{
		OrderID:    orderID,
		PaymentID:  paymentID,
		Name:       form.Name,
		Email:      form.Email,
		Phone:      form.Phone,
		Amount:     form.Amount * 100,
		PaymentFor: form.PaymentFor,
		Notes:      form.Notes,
		Currency:   f.currency,
		Status:     "COMPLETED",
		IsManual:   true,
	})
	if err != nil {
		if api.IsForbidden(err) {
			log.Warn().Msg("manual payment forbidden")
			return nil, f.fail(&FlowError{Kind: KindPermission, Message: MsgManualForbidden})
		}
		log.Warn().Err(err).Msg("manual payment failed")
		return nil, f.fail(f.orderError(err))
	}

	receipt := &Receipt{DonationID: resp.DonationID, PaymentID: paymentID, OrderID: orderID}
	f.set(StateCompleted, &Order{OrderID: orderID, Amount: form.Amount * 100, Currency: f.currency}, receipt, "")
	log.Info().Str("donation_id", receipt.DonationID).Msg("manual payment recorded")
	return receipt, nil
}

// begin claims the flow for a new attempt. Idle and completed both count
// as free; a completed receipt is discarded when the next attempt starts.
func (f *Flow) begin() error {
	f.mu.Lock()
	if f.state != StateIdle && f.state != StateCompleted {
		f.mu.Unlock()
		return ErrAttemptInProgress
	}
	f.state = StateCreatingOrder
	f.order = nil
	f.receipt = nil
	f.message = ""
	snap, subs := f.snapshotLocked(), f.subscribersLocked()
	f.mu.Unlock()
	notify(subs, snap)
	return nil
}

// orderError maps a backend error from order creation or manual recording
// onto the flow taxonomy.
func (f *Flow) orderError(err error) *FlowError {
	switch {
	case api.IsUnauthorized(err), api.IsForbidden(err):
		return &FlowError{Kind: KindSession, Message: MsgSessionExpired}
	case api.IsConflict(err):
		return &FlowError{Kind: KindConflict, Message: api.UserMessage(err)}
	case api.StatusCode(err) == 0:
		return &FlowError{Kind: KindNetwork, Message: api.NetworkErrorMessage}
	default:
		msg := api.UserMessage(err)
		if msg == "" || msg == api.NetworkErrorMessage {
			msg = MsgOrderFailed
		}
		return &FlowError{Kind: KindUnknown, Message: msg}
	}
}

func verifyMessage(err error) string {
	if msg := api.UserMessage(err); msg != "" && msg != api.NetworkErrorMessage {
		return msg
	}
	return MsgVerificationFailed
}

// fail drops the flow back to idle with a display message and returns
// ferr for the caller.
func (f *Flow) fail(ferr *FlowError) error {
	f.set(StateIdle, nil, nil, ferr.Message)
	return ferr
}

func (f *Flow) set(state State, order *Order, receipt *Receipt, message string) {
	f.mu.Lock()
	f.state = state
	f.order = order
	f.receipt = receipt
	f.message = message
	snap, subs := f.snapshotLocked(), f.subscribersLocked()
	f.mu.Unlock()
	notify(subs, snap)
}

func (f *Flow) snapshotLocked() Snapshot {
	return Snapshot{State: f.state, Order: f.order, Receipt: f.receipt, Message: f.message}
}

func (f *Flow) subscribersLocked() []func(Snapshot) {
	subs := make([]func(Snapshot), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}
