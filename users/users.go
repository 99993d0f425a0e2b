package users

import (
	"strings"
	"time"
)

// User is the profile returned by the dashboard endpoint's user_info payload.
// Field names follow the backend's snake_case wire format.
type User struct {
	ID        int    `json:"id,omitempty"`         // Unique identifier for the user
	Username  string `json:"username,omitempty"`   // Unique username, also the login identifier
	Email     string `json:"email,omitempty"`      // User's email address
	FirstName string `json:"first_name,omitempty"` // First name of the user
	LastName  string `json:"last_name,omitempty"`  // Last name of the user
	Phone     string `json:"phone,omitempty"`      // Contact number, prefilled into checkout

	IsStaff  bool `json:"is_staff,omitempty"`  // Staff users may record offline payments
	IsMember bool `json:"is_member,omitempty"` // Holds an active membership

	MembershipValidUntil time.Time `json:"membership_valid_until,omitempty"` // Zero when not a member
	DateJoined           time.Time `json:"date_joined,omitempty"`            // When the user registered
}

// FullName joins first and last name, falling back to the username when
// neither is set.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// MembershipActive reports whether the user holds a membership that is still
// valid at the given time. A zero MembershipValidUntil with IsMember set is
// treated as a non-expiring membership.
func (u *User) MembershipActive(now time.Time) bool {
	if !u.IsMember {
		return false
	}
	if u.MembershipValidUntil.IsZero() {
		return true
	}
	return u.MembershipValidUntil.After(now)
}

// CanRecordPayments reports whether the user may enter offline payments
// through the back-office flow. The backend enforces this server-side; the
// client uses it only to hide the entry point.
func (u *User) CanRecordPayments() bool {
	return u.IsStaff
}
