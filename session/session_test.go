package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/seva-trust/donorportal/api"
	"github.com/seva-trust/donorportal/session"
	"github.com/seva-trust/donorportal/session/credentials/storefake"
	"github.com/seva-trust/donorportal/session/profilecache/cachefake"
	"github.com/seva-trust/donorportal/token"
	"github.com/seva-trust/donorportal/users"
	"github.com/stretchr/testify/require"
)

const (
	testUsername = "asha"
	testPassword = "password123"
)

var testUser = users.User{ID: 7, Username: testUsername, Email: "asha@example.org", Phone: "9999999999"}

// backend simulates the portal REST API and counts calls per endpoint.
type backend struct {
	lock sync.Mutex

	tokenCalls     int
	refreshCalls   int
	verifyCalls    int
	dashboardCalls int
	joinCalls      int

	validAccess        map[string]bool // tokens the verify endpoint accepts
	refreshedAccess    string          // access token minted by refresh; "" rejects
	loginPair          *token.Pair     // nil rejects login
	loginFailBody      string
	joinFailBody       string
	dashboardFailures  int             // fail this many dashboard calls, then succeed
	refreshAuthHeaders []string
	user               users.User
}

func newBackend() *backend {
	return &backend{
		validAccess: map[string]bool{},
		user:        testUser,
	}
}

func (b *backend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.lock.Lock()
		defer b.lock.Unlock()

		switch r.URL.Path {
		case "/account/token/":
			b.tokenCalls++
			if b.loginPair == nil {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(b.loginFailBody))
				return
			}
			json.NewEncoder(w).Encode(b.loginPair)

		case "/account/token/refresh/":
			b.refreshCalls++
			b.refreshAuthHeaders = append(b.refreshAuthHeaders, r.Header.Get("Authorization"))
			if b.refreshedAccess == "" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"detail":"Token is invalid or expired"}`))
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"access": b.refreshedAccess})

		case "/account/token/verify/":
			b.verifyCalls++
			var body struct {
				Token string `json:"token"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if !b.validAccess[body.Token] {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{}`))

		case "/dashboard/":
			b.dashboardCalls++
			if b.dashboardFailures > 0 {
				b.dashboardFailures--
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"user_info": b.user})

		case "/account/join/":
			b.joinCalls++
			if b.joinFailBody != "" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(b.joinFailBody))
				return
			}
			w.WriteHeader(http.StatusCreated)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (b *backend) counts() (tokens, refreshes, verifies, dashboards int) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.tokenCalls, b.refreshCalls, b.verifyCalls, b.dashboardCalls
}

type fixture struct {
	backend *backend
	store   *storefake.Store
	cache   *cachefake.Cache
	session *session.Session
}

func newFixture(t *testing.T, options ...session.Option) *fixture {
	t.Helper()

	b := newBackend()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	store := storefake.NewStore()
	cache := cachefake.NewCache()

	client, err := api.New(srv.URL, nil, store)
	require.NoError(t, err)

	sess, err := session.New(client, store, cache, options...)
	require.NoError(t, err)

	return &fixture{backend: b, store: store, cache: cache, session: sess}
}

func signAccess(t *testing.T, exp time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
		"sub": "7",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestCheckAuthNoTokensAlwaysAnonymous(t *testing.T) {
	f := newFixture(t)
	f.cache.SetProfile(&testUser) // stale leftover from a previous user

	for i := 0; i < 3; i++ {
		snap := f.session.CheckAuth(context.Background())
		require.Equal(t, session.StateAnonymous, snap.State)
		require.True(t, snap.Initialized)
		require.Nil(t, snap.User)
	}

	require.False(t, f.cache.Has(), "stale cached profile must be purged")
	_, refreshes, verifies, dashboards := f.backend.counts()
	require.Zero(t, refreshes+verifies+dashboards, "no network traffic without tokens")
}

func TestCheckAuthValidAccessNoCache(t *testing.T) {
	f := newFixture(t)
	access := signAccess(t, time.Now().Add(time.Hour))
	f.backend.validAccess[access] = true
	f.store.SetPair(token.Pair{Access: access, Refresh: "ref-1"})

	snap := f.session.CheckAuth(context.Background())

	require.Equal(t, session.StateAuthenticated, snap.State)
	require.True(t, snap.Initialized)
	require.Equal(t, &testUser, snap.User)

	cached, err := f.cache.Profile()
	require.NoError(t, err)
	require.Equal(t, snap.User, cached, "memory and cache must be populated identically")

	_, refreshes, verifies, dashboards := f.backend.counts()
	require.Zero(t, refreshes)
	require.Equal(t, 1, verifies)
	require.Equal(t, 1, dashboards, "exactly one profile fetch")
}

func TestCheckAuthValidAccessUsesCache(t *testing.T) {
	f := newFixture(t)
	access := signAccess(t, time.Now().Add(time.Hour))
	f.backend.validAccess[access] = true
	f.store.SetPair(token.Pair{Access: access, Refresh: "ref-1"})
	require.NoError(t, f.cache.SetProfile(&testUser))

	snap := f.session.CheckAuth(context.Background())

	require.Equal(t, session.StateAuthenticated, snap.State)
	_, _, _, dashboards := f.backend.counts()
	require.Zero(t, dashboards, "cached profile must avoid the fetch")
}

func TestCheckAuthCorruptCacheRefetches(t *testing.T) {
	f := newFixture(t)
	access := signAccess(t, time.Now().Add(time.Hour))
	f.backend.validAccess[access] = true
	f.store.SetPair(token.Pair{Access: access, Refresh: "ref-1"})
	f.cache.Corrupt = true

	snap := f.session.CheckAuth(context.Background())

	require.Equal(t, session.StateAuthenticated, snap.State)
	_, _, _, dashboards := f.backend.counts()
	require.Equal(t, 1, dashboards, "malformed cache triggers a re-fetch")
}

func TestCheckAuthExpiredAccessRefreshes(t *testing.T) {
	f := newFixture(t)
	expired := signAccess(t, time.Now().Add(-time.Hour))
	fresh := signAccess(t, time.Now().Add(time.Hour))
	f.store.SetPair(token.Pair{Access: expired, Refresh: "ref-1"})
	f.backend.refreshedAccess = fresh

	snap := f.session.CheckAuth(context.Background())

	require.Equal(t, session.StateAuthenticated, snap.State)
	require.Equal(t, fresh, f.store.AccessToken())

	_, refreshes, verifies, dashboards := f.backend.counts()
	require.Equal(t, 1, refreshes, "exactly one refresh call")
	require.Equal(t, 1, dashboards, "exactly one profile fetch")
	require.Zero(t, verifies, "locally expired token skips the verify round trip")
	require.Equal(t, []string{""}, f.backend.refreshAuthHeaders, "refresh must not carry the bearer header")
}

func TestCheckAuthRefreshTokenOnly(t *testing.T) {
	f := newFixture(t)
	fresh := signAccess(t, time.Now().Add(time.Hour))
	f.store.SetPair(token.Pair{Refresh: "ref-1"})
	f.backend.refreshedAccess = fresh

	snap := f.session.CheckAuth(context.Background())

	require.Equal(t, session.StateAuthenticated, snap.State)
	_, refreshes, _, dashboards := f.backend.counts()
	require.Equal(t, 1, refreshes)
	require.Equal(t, 1, dashboards)
}

func TestCheckAuthRefreshFailurePurges(t *testing.T) {
	f := newFixture(t)
	f.store.SetPair(token.Pair{Refresh: "ref-1"})
	f.cache.SetProfile(&testUser)

	snap := f.session.CheckAuth(context.Background())

	require.Equal(t, session.StateAnonymous, snap.State)
	require.True(t, snap.Initialized)
	require.Empty(t, snap.Err, "check failures are suppressed, not surfaced")
	require.Empty(t, f.store.RefreshToken())
	require.False(t, f.cache.Has())
}

func TestCheckAuthVerifyFailureFallsBackToRefresh(t *testing.T) {
	f := newFixture(t)
	// Unexpired locally but rejected by the server (e.g. signing key rotated).
	access := signAccess(t, time.Now().Add(time.Hour))
	fresh := signAccess(t, time.Now().Add(2*time.Hour))
	f.store.SetPair(token.Pair{Access: access, Refresh: "ref-1"})
	f.backend.refreshedAccess = fresh

	snap := f.session.CheckAuth(context.Background())

	require.Equal(t, session.StateAuthenticated, snap.State)
	_, refreshes, verifies, _ := f.backend.counts()
	require.Equal(t, 1, verifies)
	require.Equal(t, 1, refreshes, "verify failure falls back to the refresh path")
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)
	pair := token.Pair{Access: signAccess(t, time.Now().Add(time.Hour)), Refresh: "ref-1"}
	f.backend.loginPair = &pair

	res := f.session.Login(context.Background(), testUsername, testPassword)

	require.True(t, res.Success)
	require.Equal(t, pair.Access, f.store.AccessToken())
	require.Equal(t, pair.Refresh, f.store.RefreshToken())
	require.True(t, f.cache.Has())
	require.True(t, f.session.Snapshot().Authenticated())
}

func TestLoginFailureNormalizesMessage(t *testing.T) {
	f := newFixture(t)
	f.backend.loginFailBody = `{"detail":"No active account found with the given credentials"}`

	res := f.session.Login(context.Background(), testUsername, "wrong")

	require.False(t, res.Success)
	require.Equal(t, "No active account found with the given credentials", res.Message)
	require.Empty(t, f.store.AccessToken())
}

func TestLoginProfileFetchFallsBackToCheckAuth(t *testing.T) {
	f := newFixture(t)
	access := signAccess(t, time.Now().Add(time.Hour))
	f.backend.loginPair = &token.Pair{Access: access, Refresh: "ref-1"}
	f.backend.validAccess[access] = true
	f.backend.dashboardFailures = 1 // first fetch fails, retry via CheckAuth succeeds

	res := f.session.Login(context.Background(), testUsername, testPassword)

	require.True(t, res.Success)
	require.True(t, f.session.Snapshot().Authenticated())
	_, _, _, dashboards := f.backend.counts()
	require.Equal(t, 2, dashboards)
}

func TestLoginFallbackCheckFailureCarriesMessage(t *testing.T) {
	f := newFixture(t)
	access := signAccess(t, time.Now().Add(time.Hour))
	f.backend.loginPair = &token.Pair{Access: access, Refresh: "ref-1"}
	// Profile fetch fails and the fallback check cannot recover: the
	// server rejects both verify and refresh.
	f.backend.dashboardFailures = 1

	res := f.session.Login(context.Background(), testUsername, testPassword)

	require.False(t, res.Success)
	require.Equal(t, api.NetworkErrorMessage, res.Message, "login failure must carry a normalized message")
	require.False(t, f.session.Snapshot().Authenticated())
	require.Empty(t, f.store.AccessToken())
}

func TestLoginConsumesStashedRedirect(t *testing.T) {
	f := newFixture(t)
	pair := token.Pair{Access: signAccess(t, time.Now().Add(time.Hour)), Refresh: "ref-1"}
	f.backend.loginPair = &pair
	f.session.StashRedirect("/membership")

	res := f.session.Login(context.Background(), testUsername, testPassword)

	require.True(t, res.Success)
	require.Equal(t, "/membership", res.RedirectPath)
	require.Empty(t, f.cache.RedirectPath(), "redirect is consumed exactly once")

	// A second login has nothing stashed.
	res = f.session.Login(context.Background(), testUsername, testPassword)
	require.True(t, res.Success)
	require.Empty(t, res.RedirectPath)
}

func TestLogoutIdempotent(t *testing.T) {
	var navigations int
	f := newFixture(t, session.WithNavigateHome(func() { navigations++ }))
	access := signAccess(t, time.Now().Add(time.Hour))
	f.backend.validAccess[access] = true
	f.store.SetPair(token.Pair{Access: access, Refresh: "ref-1"})
	f.session.CheckAuth(context.Background())
	require.True(t, f.session.Snapshot().Authenticated())

	f.session.Logout(context.Background())
	f.session.Logout(context.Background())

	snap := f.session.Snapshot()
	require.Equal(t, session.StateAnonymous, snap.State)
	require.True(t, snap.Initialized)
	require.Empty(t, f.store.AccessToken())
	require.Empty(t, f.store.RefreshToken())
	require.False(t, f.cache.Has())
	require.Equal(t, 2, navigations)
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	res := f.session.Register(context.Background(), api.RegisterPayload{Username: "new", Email: "new@example.org", Password: "pw"})
	require.True(t, res.Success)
	require.False(t, f.session.Snapshot().Authenticated(), "registration does not auto-login")

	f.backend.joinFailBody = `{"username":["A user with that username already exists."]}`
	res = f.session.Register(context.Background(), api.RegisterPayload{Username: "new"})
	require.False(t, res.Success)
	require.Equal(t, "A user with that username already exists.", res.Message)
}

func TestRenewalKeepsSessionAlive(t *testing.T) {
	f := newFixture(t, session.WithRenewalInterval(15*time.Millisecond))
	access := signAccess(t, time.Now().Add(time.Hour))
	f.backend.validAccess[access] = true
	f.backend.refreshedAccess = signAccess(t, time.Now().Add(2*time.Hour))
	f.store.SetPair(token.Pair{Access: access, Refresh: "ref-1"})

	f.session.CheckAuth(context.Background())
	require.True(t, f.session.Snapshot().Authenticated())

	require.Eventually(t, func() bool {
		_, refreshes, _, _ := f.backend.counts()
		return refreshes >= 2
	}, time.Second, 5*time.Millisecond)

	require.True(t, f.session.Snapshot().Authenticated())
	f.session.Logout(context.Background())
}

func TestRenewalFailureForcesLogout(t *testing.T) {
	f := newFixture(t, session.WithRenewalInterval(15*time.Millisecond))
	access := signAccess(t, time.Now().Add(time.Hour))
	f.backend.validAccess[access] = true
	f.store.SetPair(token.Pair{Access: access, Refresh: "ref-1"})
	// refreshedAccess stays empty: every renewal attempt is rejected.

	f.session.CheckAuth(context.Background())
	require.True(t, f.session.Snapshot().Authenticated())

	require.Eventually(t, func() bool {
		return f.session.Snapshot().State == session.StateAnonymous
	}, time.Second, 5*time.Millisecond)

	require.Empty(t, f.store.RefreshToken())
	require.False(t, f.cache.Has())
}

func TestSubscribeNotify(t *testing.T) {
	f := newFixture(t)

	var states []session.State
	unsubscribe := f.session.Subscribe(func(snap session.Snapshot) {
		states = append(states, snap.State)
	})

	f.session.CheckAuth(context.Background())
	require.Equal(t, []session.State{session.StateChecking, session.StateAnonymous}, states)

	unsubscribe()
	f.session.CheckAuth(context.Background())
	require.Len(t, states, 2, "unsubscribed observers must not fire")
}

func TestTokenSource(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.TokenSource().Token()
	require.ErrorIs(t, err, session.ErrNotAuthenticated)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	access := signAccess(t, exp)
	f.store.SetPair(token.Pair{Access: access, Refresh: "ref-1"})

	tok, err := f.session.TokenSource().Token()
	require.NoError(t, err)
	require.Equal(t, access, tok.AccessToken)
	require.Equal(t, "ref-1", tok.RefreshToken)
	require.True(t, tok.Expiry.Equal(exp))
}

func TestTokenSourceRefreshesExpiredAccess(t *testing.T) {
	f := newFixture(t)
	fresh := signAccess(t, time.Now().Add(time.Hour))
	f.store.SetPair(token.Pair{Access: signAccess(t, time.Now().Add(-time.Hour)), Refresh: "ref-1"})
	f.backend.refreshedAccess = fresh

	tok, err := f.session.TokenSource().Token()
	require.NoError(t, err)
	require.Equal(t, fresh, tok.AccessToken)

	_, refreshes, _, _ := f.backend.counts()
	require.Equal(t, 1, refreshes)
}
