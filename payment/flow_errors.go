package payment

import "errors"

// ErrAttemptInProgress is returned when ProcessPayment or ManualPayment is
// called while another attempt is live. The flow rejects re-entry outright
// instead of relying on the UI to disable the trigger.
var ErrAttemptInProgress = errors.New("a payment attempt is already in progress")

// ErrorKind tags a flow failure by family. The source system surfaced bare
// strings; the tag makes the taxonomy explicit while Message stays the
// user-facing text.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindNetwork
	KindSession
	KindConflict
	KindGateway
	KindVerification
	KindPermission
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindSession:
		return "session"
	case KindConflict:
		return "conflict"
	case KindGateway:
		return "gateway"
	case KindVerification:
		return "verification"
	case KindPermission:
		return "permission"
	}
	return "unknown"
}

// FlowError is a terminal flow failure. Message is always non-empty and
// safe to display; server-supplied text is preferred over the family
// fallback wherever the upstream response carries one.
type FlowError struct {
	Kind    ErrorKind
	Message string
}

func (e *FlowError) Error() string {
	return e.Message
}

// Fixed user-facing messages for outcomes where the upstream supplies none.
const (
	MsgPaymentCancelled   = "Payment cancelled"
	MsgOrderFailed        = "Unable to initiate payment. Please try again."
	MsgSessionExpired     = "Your session has expired. Please log in again."
	MsgVerificationFailed = "Payment verification failed. Please contact support if the amount was deducted."
	MsgManualForbidden    = "You do not have permission to record offline payments. Please ask an administrator to grant you elevated access."
)
