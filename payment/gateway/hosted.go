package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// HostedCheckout serves the provider's embedded checkout page from a
// loopback HTTP server and waits for its callback. Used by the staff CLI
// and kiosk builds, where there is no surrounding web page to embed the
// checkout script into. The first callback wins; later ones are ignored.
type HostedCheckout struct {
	opts    Options
	display string
	log     zerolog.Logger
	openURL func(url string) error
}

var _ Gateway = (*HostedCheckout)(nil)

// HostedOption configures a HostedCheckout.
type HostedOption func(*HostedCheckout)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) HostedOption {
	return func(h *HostedCheckout) {
		h.log = log
	}
}

// WithDisplayName sets the organization name rendered in the checkout UI.
func WithDisplayName(name string) HostedOption {
	return func(h *HostedCheckout) {
		h.display = name
	}
}

// WithOpenURL overrides how the checkout page is opened (for testing).
func WithOpenURL(fn func(url string) error) HostedOption {
	return func(h *HostedCheckout) {
		h.openURL = fn
	}
}

// NewHostedCheckout builds a loopback checkout with the given options.
func NewHostedCheckout(opts Options, options ...HostedOption) *HostedCheckout {
	h := &HostedCheckout{
		opts:    opts.WithDefaults(),
		display: "Donor Portal",
		log:     zerolog.Nop(),
		openURL: openBrowser,
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

type outcome struct {
	callback Callback
	err      error
}

// Checkout serves the checkout page on a loopback port, opens it, and waits
// for exactly one of the three callbacks or ctx cancellation.
func (h *HostedCheckout) Checkout(ctx context.Context, order Order, prefill Prefill) (Callback, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return Callback{}, errors.Wrap(err, "[HostedCheckout.Checkout] listen")
	}

	sessionID := uuid.New().String()
	results := make(chan outcome, 1)
	resolve := func(o outcome) {
		select {
		case results <- o:
		default: // a callback already resolved this session
		}
	}

	router := chi.NewRouter()
	router.Get("/", h.servePage(order, prefill, sessionID))
	router.Post("/callback/success", func(w http.ResponseWriter, r *http.Request) {
		var cb Callback
		if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
			http.Error(w, "bad callback payload", http.StatusBadRequest)
			return
		}
		resolve(outcome{callback: cb})
		w.WriteHeader(http.StatusNoContent)
	})
	router.Post("/callback/failed", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		resolve(outcome{err: &FailureError{Reason: body.Description, Code: body.Code}})
		w.WriteHeader(http.StatusNoContent)
	})
	router.Post("/callback/dismiss", func(w http.ResponseWriter, _ *http.Request) {
		resolve(outcome{err: ErrDismissed})
		w.WriteHeader(http.StatusNoContent)
	})

	server := &http.Server{Handler: router}
	go server.Serve(listener)
	defer server.Close()

	pageURL := fmt.Sprintf("http://%s/", listener.Addr())
	h.log.Info().Str("session", sessionID).Str("order", order.ID).Str("url", pageURL).Msg("opening checkout")

	if err := h.openURL(pageURL); err != nil {
		return Callback{}, errors.Wrap(err, "[HostedCheckout.Checkout] open checkout page")
	}

	select {
	case <-ctx.Done():
		return Callback{}, ctx.Err()
	case res := <-results:
		if res.err != nil {
			return Callback{}, res.err
		}
		h.log.Info().Str("session", sessionID).Str("payment", res.callback.PaymentID).Msg("checkout completed")
		return res.callback, nil
	}
}

// checkoutPage embeds the provider script and forwards its three outcomes to
// the loopback callbacks. Prefilled identity fields are read-only so they
// cannot be edited between order creation and payment.
var checkoutPage = template.Must(template.New("checkout").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Display}} - Payment</title></head>
<body>
<script src="{{.ScriptURL}}"></script>
<script>
var options = {
  key: {{.Key}},
  amount: {{.Amount}},
  currency: {{.Currency}},
  order_id: {{.OrderID}},
  name: {{.Display}},
  prefill: {name: {{.Name}}, email: {{.Email}}, contact: {{.Phone}}},
  readonly: {name: true, email: true, contact: true},
  theme: {color: {{.Theme}}},
  timeout: {{.Timeout}},
  retry: {enabled: true, max_count: {{.Retries}}},
  handler: function (resp) {
    fetch("/callback/success", {method: "POST", body: JSON.stringify(resp)})
      .then(function () { document.body.innerHTML = "Payment received. You may close this window."; });
  },
  modal: {
    ondismiss: function () { fetch("/callback/dismiss", {method: "POST"}); }
  }
};
var rzp = new Razorpay(options);
rzp.on("payment.failed", function (resp) {
  fetch("/callback/failed", {method: "POST", body: JSON.stringify(resp.error)});
});
rzp.open();
</script>
</body>
</html>`))

func (h *HostedCheckout) servePage(order Order, prefill Prefill, sessionID string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		key := order.Key
		if key == "" {
			key = h.opts.KeyID
		}
		data := map[string]any{
			"Display":   h.display,
			"ScriptURL": h.opts.ScriptURL,
			"Key":       key,
			"Amount":    order.Amount,
			"Currency":  order.Currency,
			"OrderID":   order.ID,
			"Name":      prefill.Name,
			"Email":     prefill.Email,
			"Phone":     prefill.Phone,
			"Theme":     h.opts.ThemeColor,
			"Timeout":   int(h.opts.MaxAge / time.Second),
			"Retries":   h.opts.RetryCount,
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := checkoutPage.Execute(w, data); err != nil {
			h.log.Error().Err(err).Str("session", sessionID).Msg("failed to render checkout page")
		}
	}
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
