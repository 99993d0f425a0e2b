package payment

import (
	"strings"

	"github.com/seva-trust/donorportal/users"
)

// FormData is the payor-supplied input for a payment attempt. Amount is in
// minor currency units for ProcessPayment and in major units for
// ManualPayment, matching how each backend endpoint expects it.
type FormData struct {
	Name       string
	Email      string
	Phone      string
	Amount     int64
	PaymentFor string
	Notes      string
}

// FillFrom copies profile fields into any blank form fields. Explicit
// form input always wins over the profile.
func (f FormData) FillFrom(u *users.User) FormData {
	if u == nil {
		return f
	}
	if strings.TrimSpace(f.Name) == "" {
		f.Name = u.FullName()
	}
	if strings.TrimSpace(f.Email) == "" {
		f.Email = u.Email
	}
	if strings.TrimSpace(f.Phone) == "" {
		f.Phone = u.Phone
	}
	return f
}

func (f FormData) validate() *FlowError {
	switch {
	case strings.TrimSpace(f.Name) == "":
		return &FlowError{Kind: KindValidation, Message: "Name is required."}
	case strings.TrimSpace(f.Email) == "":
		return &FlowError{Kind: KindValidation, Message: "Email is required."}
	case strings.TrimSpace(f.Phone) == "":
		return &FlowError{Kind: KindValidation, Message: "Phone number is required."}
	case f.Amount <= 0:
		return &FlowError{Kind: KindValidation, Message: "Amount must be greater than zero."}
	case strings.TrimSpace(f.PaymentFor) == "":
		return &FlowError{Kind: KindValidation, Message: "Please select what this payment is for."}
	}
	return nil
}
