// Package token holds the access/refresh token pair value type and
// client-side claim inspection. The client never validates signatures;
// that is the backend's job via the verify endpoint. It only reads the
// exp claim to avoid round trips that are guaranteed to fail.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Cookie names used for the credential pair. These match the backend's
// expectations and must not change without a coordinated release.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// Pair is one access/refresh credential pair as issued by the token endpoint.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// ExpiresAt extracts the exp claim from a raw JWT without verifying the
// signature. The caller must treat the result as a hint only.
func ExpiresAt(raw string) (time.Time, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, errors.Wrap(err, "[ExpiresAt] ParseUnverified")
	}

	claims, ok := unverified.Claims.(jwt.MapClaims)
	if !ok {
		return time.Time{}, errors.New("[ExpiresAt] error extracting claims")
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, errors.New("[ExpiresAt] missing exp claim")
	}

	return time.Unix(int64(exp), 0), nil
}

// Expired reports whether a raw access token has expired as of now. A token
// that cannot be parsed, or that carries no exp claim, is treated as expired
// so that callers fall through to the refresh path instead of sending a
// request that will be rejected.
func Expired(raw string, now time.Time) bool {
	exp, err := ExpiresAt(raw)
	if err != nil {
		return true
	}
	return !exp.After(now)
}
