package api

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/seva-trust/donorportal/token"
	"github.com/seva-trust/donorportal/users"
)

// Backend endpoint paths, relative to the configured base URL.
const (
	pathToken         = "/account/token/"
	pathTokenRefresh  = "/account/token/refresh/"
	pathTokenVerify   = "/account/token/verify/"
	pathJoin          = "/account/join/"
	pathDashboard     = "/dashboard/"
	pathPaymentInit   = "/payment/init/"
	pathPaymentVerify = "/payment/verify/"
	pathPaymentCreate = "/payment/create/"
)

// Token exchanges credentials for a token pair.
func (c *Client) Token(ctx context.Context, username, password string) (token.Pair, error) {
	body := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{username, password}

	var pair token.Pair
	if err := c.do(ctx, http.MethodPost, pathToken, body, &pair, false); err != nil {
		return token.Pair{}, errors.Wrap(err, "[Client.Token]")
	}
	return pair, nil
}

// RefreshToken mints a new access token from a refresh token. The request is
// sent without the bearer header: the access token being refreshed may
// already be expired and must not interfere.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (string, error) {
	body := struct {
		Refresh string `json:"refresh"`
	}{refresh}

	var out struct {
		Access string `json:"access"`
	}
	if err := c.do(ctx, http.MethodPost, pathTokenRefresh, body, &out, false); err != nil {
		return "", errors.Wrap(err, "[Client.RefreshToken]")
	}
	return out.Access, nil
}

// VerifyToken checks a raw access token with the backend; any non-2xx means
// invalid. Sent unauthenticated so an invalid token cannot trip the client's
// own 401 refresh-and-retry.
func (c *Client) VerifyToken(ctx context.Context, raw string) error {
	body := struct {
		Token string `json:"token"`
	}{raw}

	if err := c.do(ctx, http.MethodPost, pathTokenVerify, body, nil, false); err != nil {
		return errors.Wrap(err, "[Client.VerifyToken]")
	}
	return nil
}

// RegisterPayload is the registration form posted to the join endpoint.
type RegisterPayload struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	Phone           string `json:"phone,omitempty"`
}

// Join registers a new account. Registration does not log the user in.
func (c *Client) Join(ctx context.Context, payload RegisterPayload) error {
	if err := c.do(ctx, http.MethodPost, pathJoin, payload, nil, false); err != nil {
		return errors.Wrap(err, "[Client.Join]")
	}
	return nil
}

// Dashboard fetches the canonical profile for the logged-in user.
func (c *Client) Dashboard(ctx context.Context) (*users.User, error) {
	var out struct {
		UserInfo *users.User `json:"user_info"`
	}
	if err := c.do(ctx, http.MethodGet, pathDashboard, nil, &out, true); err != nil {
		return nil, errors.Wrap(err, "[Client.Dashboard]")
	}
	if out.UserInfo == nil {
		return nil, errors.New("[Client.Dashboard] response missing user_info")
	}
	return out.UserInfo, nil
}

// PaymentInitRequest asks the backend to create a gateway order.
type PaymentInitRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Amount     int64  `json:"amount"` // minor currency units
	PaymentFor string `json:"payment_for"`
	Notes      string `json:"notes,omitempty"`
	Currency   string `json:"currency"`
}

// PaymentInitResponse carries the server-issued order identity.
type PaymentInitResponse struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
	Key      string `json:"key,omitempty"`
}

// PaymentInit creates an order. The bearer header is attached when a user is
// logged in; anonymous donations are also accepted by the backend.
func (c *Client) PaymentInit(ctx context.Context, req PaymentInitRequest) (PaymentInitResponse, error) {
	var out PaymentInitResponse
	if err := c.do(ctx, http.MethodPost, pathPaymentInit, req, &out, true); err != nil {
		return PaymentInitResponse{}, errors.Wrap(err, "[Client.PaymentInit]")
	}
	return out, nil
}

// PaymentVerifyRequest relays the gateway callback values for server-side
// signature verification. The client never checks the signature itself.
type PaymentVerifyRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// PaymentVerifyResponse reports the authoritative verification outcome.
type PaymentVerifyResponse struct {
	Message         string `json:"message,omitempty"`
	PaymentID       string `json:"payment_id,omitempty"`
	OrderID         string `json:"order_id,omitempty"`
	Status          string `json:"status,omitempty"`
	PaymentVerified bool   `json:"payment_verified"`
	DonationID      string `json:"donation_id,omitempty"`
}

// PaymentVerify submits the callback values for verification.
func (c *Client) PaymentVerify(ctx context.Context, req PaymentVerifyRequest) (PaymentVerifyResponse, error) {
	var out PaymentVerifyResponse
	if err := c.do(ctx, http.MethodPost, pathPaymentVerify, req, &out, true); err != nil {
		return PaymentVerifyResponse{}, errors.Wrap(err, "[Client.PaymentVerify]")
	}
	return out, nil
}

// PaymentCreateRequest records an offline payment as already completed.
type PaymentCreateRequest struct {
	OrderID    string `json:"order_id"`
	PaymentID  string `json:"payment_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Amount     int64  `json:"amount"` // minor currency units
	PaymentFor string `json:"payment_for"`
	Notes      string `json:"notes,omitempty"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
	IsManual   bool   `json:"is_manual"`
}

// PaymentCreateResponse acknowledges a recorded offline payment.
type PaymentCreateResponse struct {
	Message    string `json:"message,omitempty"`
	DonationID string `json:"donation_id,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	PaymentID  string `json:"payment_id,omitempty"`
}

// PaymentCreate records a manual payment. Requires staff privileges; the
// backend answers 403 otherwise.
func (c *Client) PaymentCreate(ctx context.Context, req PaymentCreateRequest) (PaymentCreateResponse, error) {
	var out PaymentCreateResponse
	if err := c.do(ctx, http.MethodPost, pathPaymentCreate, req, &out, true); err != nil {
		return PaymentCreateResponse{}, errors.Wrap(err, "[Client.PaymentCreate]")
	}
	return out, nil
}
