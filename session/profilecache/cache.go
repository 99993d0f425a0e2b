// Package profilecache is the denormalized profile store that lets the
// application paint a logged-in view before the first network round trip
// completes. It is a cache only: the token cookies decide whether a user is
// authenticated, and the cache is wiped whenever those cookies are cleared.
package profilecache

import (
	"github.com/pkg/errors"
	"github.com/seva-trust/donorportal/users"
)

var (
	// ErrNotFound is returned when no profile has been cached.
	ErrNotFound = errors.New("profile not cached")
	// ErrCorrupt is returned when the cached document cannot be parsed.
	// Callers should treat this as a miss and re-fetch the profile.
	ErrCorrupt = errors.New("cached profile corrupt")
)

// Cache stores the user profile and small navigation breadcrumbs between
// process runs.
type Cache interface {
	// Profile returns the cached user, ErrNotFound when absent, or
	// ErrCorrupt when the stored document does not parse.
	Profile() (*users.User, error)
	SetProfile(u *users.User) error

	// RedirectPath is the route to land on after the next successful login.
	RedirectPath() string
	SetRedirectPath(path string) error

	// Clear wipes the entire store, not just the profile. This is a
	// deliberate blunt reset matching logout semantics.
	Clear() error
}
