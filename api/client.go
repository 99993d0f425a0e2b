// Package api is the REST layer shared by the auth session and the payment
// flow. It attaches the bearer header to authenticated requests and performs
// at most one silent refresh-and-retry when such a request is rejected with
// a 401. It deliberately does not coordinate with the session's periodic
// renewal timer; the two can race a refresh, which is benign because the
// backend treats refresh idempotently.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultTimeout = 30 * time.Second

// TokenReader supplies the current access token for the bearer header.
type TokenReader interface {
	AccessToken() string
}

// Refresher performs one silent token refresh, reporting success. The auth
// session implements this and registers itself via SetRefresher.
type Refresher interface {
	Refresh(ctx context.Context) bool
}

// Client talks to the portal backend.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     TokenReader
	refresher  Refresher
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithHTTPClient replaces the underlying HTTP client. The caller is
// responsible for wiring the cookie jar when overriding.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client rooted at baseURL. The jar holds the token cookies
// and is shared with the credential store so that the cookies the client
// sends are the same ones the session manages.
func New(baseURL string, jar http.CookieJar, tokens TokenReader, options ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("[api.New] tokens reader is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "[api.New] invalid base URL")
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("[api.New] base URL must be absolute")
	}

	client := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Jar: jar, Timeout: defaultTimeout},
		tokens:     tokens,
		log:        zerolog.Nop(),
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

// BaseURL returns the API origin the client was built with.
func (c *Client) BaseURL() *url.URL {
	return c.baseURL
}

// SetRefresher installs the 401 retry hook. Registered by the session after
// construction, since the session itself depends on this client.
func (c *Client) SetRefresher(r Refresher) {
	c.refresher = r
}

// do issues one request. When authenticated, the bearer header is attached
// if an access token is present, and a single 401 triggers one silent
// refresh followed by one retry. Non-2xx responses become *Error with the
// normalized message extracted from the body.
func (c *Client) do(ctx context.Context, method, path string, body, out any, authenticated bool) error {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "[Client.do] marshal %s %s", method, path)
		}
	}

	resp, raw, err := c.attempt(ctx, method, path, encoded, authenticated)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && authenticated && c.refresher != nil {
		c.log.Debug().Str("path", path).Msg("401 received, attempting silent refresh")
		if c.refresher.Refresh(ctx) {
			resp, raw, err = c.attempt(ctx, method, path, encoded, authenticated)
			if err != nil {
				return err
			}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			StatusCode: resp.StatusCode,
			Message:    messageFromBody(raw),
			Body:       raw,
		}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return errors.Wrapf(err, "[Client.do] decode %s %s", method, path)
		}
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, method, path string, body []byte, authenticated bool) (*http.Response, []byte, error) {
	endpoint := c.baseURL.JoinPath(path)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "[Client.attempt] build %s %s", method, path)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if authenticated {
		if access := c.tokens.AccessToken(); access != "" {
			req.Header.Set("Authorization", "Bearer "+access)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("path", path).Msg("request failed")
		return nil, nil, errors.Wrapf(err, "[Client.attempt] %s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "[Client.attempt] read %s %s", method, path)
	}
	return resp, raw, nil
}
