package session

import (
	"context"

	"github.com/seva-trust/donorportal/token"
	"golang.org/x/oauth2"
)

// TokenSource exposes the live session as an oauth2.TokenSource so other
// API clients can ride on the same credentials. The returned source
// refreshes through the session when the access token has expired.
func (s *Session) TokenSource() oauth2.TokenSource {
	return &tokenSource{s: s}
}

type tokenSource struct {
	s *Session
}

var _ oauth2.TokenSource = (*tokenSource)(nil)

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	access := ts.s.creds.AccessToken()
	refresh := ts.s.creds.RefreshToken()
	if access == "" && refresh == "" {
		return nil, ErrNotAuthenticated
	}

	if access == "" || token.Expired(access, ts.s.nowFunc()) {
		ctx, cancel := context.WithTimeout(context.Background(), renewTimeout)
		defer cancel()
		if !ts.s.Refresh(ctx) {
			return nil, ErrNotAuthenticated
		}
		access = ts.s.creds.AccessToken()
	}

	expiry, err := token.ExpiresAt(access)
	if err != nil {
		// Opaque token; hand it over without an expiry hint.
		return &oauth2.Token{AccessToken: access, RefreshToken: ts.s.creds.RefreshToken(), TokenType: "Bearer"}, nil
	}

	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: ts.s.creds.RefreshToken(),
		TokenType:    "Bearer",
		Expiry:       expiry,
	}, nil
}
