package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/pkg/errors"
)

// NetworkErrorMessage is the fixed fallback shown when a request failed
// without a usable server-supplied message.
const NetworkErrorMessage = "Network error. Please try again."

// Error is a non-2xx response from the backend. Message carries the
// user-facing text extracted from the response body; it may be empty when
// the body supplied none.
type Error struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: status %d", e.StatusCode)
}

// UserMessage normalizes any error from a Client call into a display string:
// the server-supplied message when one was extracted, else the fixed
// network-error fallback.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return NetworkErrorMessage
}

// StatusCode returns the HTTP status of an api.Error in err's chain, or 0
// for transport-level failures.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether err is an HTTP 401 response.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsForbidden reports whether err is an HTTP 403 response.
func IsForbidden(err error) bool {
	return StatusCode(err) == http.StatusForbidden
}

// IsConflict reports whether err is a business-rule rejection rather than a
// transient failure. The backend signals these as 409, or as 400 with a
// message payload.
func IsConflict(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusConflict {
		return true
	}
	return apiErr.StatusCode == http.StatusBadRequest && apiErr.Message != ""
}

// messageFromBody extracts the user-facing message from an error payload.
// Precedence mirrors the backend's error shapes: detail, then the first
// non_field_errors entry, then message, then the first field error. Field
// errors arrive as {"field": ["msg", ...]}; keys are scanned in sorted order
// so extraction is deterministic.
func messageFromBody(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}

	if s := asString(payload["detail"]); s != "" {
		return s
	}
	if s := firstOfArray(payload["non_field_errors"]); s != "" {
		return s
	}
	if s := asString(payload["message"]); s != "" {
		return s
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s := firstOfArray(payload[k]); s != "" {
			return s
		}
	}
	return ""
}

func asString(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func firstOfArray(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) == 0 {
		return ""
	}
	return arr[0]
}
