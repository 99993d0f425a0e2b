// Package credentials stores the access/refresh token pair. Cookies are the
// authoritative store for authentication state; the profile cache is only a
// denormalized view invalidated whenever the cookies are cleared.
package credentials

import (
	"net/http"
	"net/url"
	"time"

	"github.com/seva-trust/donorportal/token"
)

// Store holds the current credential pair.
type Store interface {
	AccessToken() string
	RefreshToken() string
	// SetPair installs a full pair, replacing whatever is stored.
	SetPair(p token.Pair)
	// SetAccess replaces only the access token, keeping the refresh token.
	// Used after a silent refresh, which returns a new access token only.
	SetAccess(access string)
	// Clear removes both tokens. Idempotent.
	Clear()
}

// CookieStore keeps the pair as access_token / refresh_token cookies in an
// http.CookieJar scoped to the API origin, so the same jar that the HTTP
// client sends on the wire is the single source of truth. Secure is set
// only when the API origin is served over HTTPS, detected from the base
// URL scheme at construction rather than configured.
type CookieStore struct {
	jar    http.CookieJar
	origin *url.URL
	secure bool
}

var _ Store = (*CookieStore)(nil)

// NewCookieStore creates a cookie-backed store scoped to the given API origin.
func NewCookieStore(jar http.CookieJar, origin *url.URL) *CookieStore {
	return &CookieStore{
		jar:    jar,
		origin: origin,
		secure: origin.Scheme == "https",
	}
}

func (cs *CookieStore) AccessToken() string {
	return cs.cookieValue(token.AccessCookie)
}

func (cs *CookieStore) RefreshToken() string {
	return cs.cookieValue(token.RefreshCookie)
}

func (cs *CookieStore) SetPair(p token.Pair) {
	cs.jar.SetCookies(cs.origin, []*http.Cookie{
		cs.cookie(token.AccessCookie, p.Access),
		cs.cookie(token.RefreshCookie, p.Refresh),
	})
}

func (cs *CookieStore) SetAccess(access string) {
	cs.jar.SetCookies(cs.origin, []*http.Cookie{
		cs.cookie(token.AccessCookie, access),
	})
}

func (cs *CookieStore) Clear() {
	cs.jar.SetCookies(cs.origin, []*http.Cookie{
		cs.expired(token.AccessCookie),
		cs.expired(token.RefreshCookie),
	})
}

func (cs *CookieStore) cookieValue(name string) string {
	for _, c := range cs.jar.Cookies(cs.origin) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (cs *CookieStore) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   cs.secure,
	}
}

func (cs *CookieStore) expired(name string) *http.Cookie {
	c := cs.cookie(name, "")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}
