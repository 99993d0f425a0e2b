// Package session owns the credential lifecycle: login, logout,
// registration, token verification, silent refresh, and periodic renewal.
// It maintains exactly one consistent view of who is logged in, with the
// token cookies as the authoritative store and the profile cache as a
// denormalized view for instant paint.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/seva-trust/donorportal/api"
	"github.com/seva-trust/donorportal/session/credentials"
	"github.com/seva-trust/donorportal/session/profilecache"
	"github.com/seva-trust/donorportal/token"
	"github.com/seva-trust/donorportal/users"
)

// DefaultRenewalInterval is how often an authenticated session silently
// refreshes its access token.
const DefaultRenewalInterval = 25 * time.Minute

const renewTimeout = 15 * time.Second

// State is the session's lifecycle position. The source system tracked this
// with loose loading/initialized/error flags; the tagged form makes the
// legal transitions explicit.
type State int

const (
	// StateUninitialized means CheckAuth has not run yet. Consumers must
	// not render auth-dependent UI in this state.
	StateUninitialized State = iota
	// StateChecking means a check or login is resolving.
	StateChecking
	// StateAuthenticated implies a non-nil User and an access token that
	// was valid as of the last check.
	StateAuthenticated
	// StateAnonymous is the definite logged-out state.
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateChecking:
		return "checking"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	}
	return "unknown"
}

// Snapshot is one consistent observation of the session.
type Snapshot struct {
	State State
	User  *users.User
	// Err is a display message from the last failed operation, empty when
	// the failure was deliberately suppressed (fail-closed checks).
	Err string
	// Initialized latches true after the first CheckAuth resolves, success
	// or failure, and never goes false again for this Session.
	Initialized bool
}

// Authenticated is a convenience accessor for State == StateAuthenticated.
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated
}

// Result is the normalized outcome of login and registration. These
// operations never return a Go error; all failures collapse to a message.
type Result struct {
	Success bool
	Message string
	// RedirectPath is the stashed post-login destination, consumed (and
	// cleared) by a successful login. Empty otherwise.
	RedirectPath string
}

// Session is the auth state machine. All methods are safe for concurrent
// use; state transitions are strictly sequential.
type Session struct {
	api   *api.Client
	creds credentials.Store
	cache profilecache.Cache

	log          zerolog.Logger
	nowFunc      func() time.Time
	renewEvery   time.Duration
	navigateHome func()

	mu        sync.Mutex
	snap      Snapshot
	subs      map[int]func(Snapshot)
	nextSubID int
	renewStop chan struct{}
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(s *Session) {
		s.nowFunc = now
	}
}

// WithRenewalInterval overrides the periodic renewal cadence.
func WithRenewalInterval(d time.Duration) Option {
	return func(s *Session) {
		s.renewEvery = d
	}
}

// WithNavigateHome sets the hook invoked after logout, the analog of the
// source's redirect to the home route.
func WithNavigateHome(fn func()) Option {
	return func(s *Session) {
		s.navigateHome = fn
	}
}

// New wires a Session to the API client, credential store, and profile
// cache, and registers the session as the client's 401 refresher.
func New(client *api.Client, creds credentials.Store, cache profilecache.Cache, options ...Option) (*Session, error) {
	if client == nil {
		return nil, errors.New("[session.New] api client is required")
	}
	if creds == nil {
		return nil, errors.New("[session.New] credentials store is required")
	}
	if cache == nil {
		return nil, errors.New("[session.New] profile cache is required")
	}

	s := &Session{
		api:        client,
		creds:      creds,
		cache:      cache,
		log:        zerolog.Nop(),
		nowFunc:    time.Now,
		renewEvery: DefaultRenewalInterval,
		snap:       Snapshot{State: StateUninitialized},
		subs:       map[int]func(Snapshot){},
	}

	for _, opt := range options {
		opt(s)
	}

	client.SetRefresher(s)
	return s, nil
}

// Snapshot returns the current observation.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe registers an observer notified synchronously on every state
// change. The returned function removes the subscription.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// CheckAuth decides session validity and always terminates in a definite
// authenticated or anonymous state, setting Initialized. Network failures
// resolve to anonymous with the error suppressed, so a flaky connection
// never leaves the caller indeterminate.
func (s *Session) CheckAuth(ctx context.Context) Snapshot {
	s.setChecking()

	access := s.creds.AccessToken()
	refresh := s.creds.RefreshToken()

	switch {
	case access == "" && refresh == "":
		// Nothing to check; make sure no stale profile survives.
		s.clearCache()
		return s.finishAnonymous("")

	case access == "":
		return s.checkViaRefresh(ctx)

	default:
		// A locally-expired token cannot pass server verification, so
		// skip the doomed round trip and go straight to refresh.
		if token.Expired(access, s.nowFunc()) || !s.VerifyToken(ctx, access) {
			return s.checkViaRefresh(ctx)
		}
		return s.finishWithProfile(ctx, true)
	}
}

// checkViaRefresh is step 2 of the precedence: mint a new access token from
// the refresh token, then fetch the profile; any failure purges and lands
// anonymous.
func (s *Session) checkViaRefresh(ctx context.Context) Snapshot {
	if !s.Refresh(ctx) {
		s.purge()
		return s.finishAnonymous("")
	}
	return s.finishWithProfile(ctx, false)
}

// finishWithProfile resolves the profile, from cache when allowed and
// parseable, else from the dashboard endpoint.
func (s *Session) finishWithProfile(ctx context.Context, useCache bool) Snapshot {
	if useCache {
		if cached, err := s.cache.Profile(); err == nil {
			return s.finishAuthenticated(cached)
		} else if errors.Is(err, profilecache.ErrCorrupt) {
			s.log.Warn().Msg("cached profile corrupt, re-fetching")
		}
	}

	user, err := s.api.Dashboard(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("profile fetch failed during check")
		s.purge()
		return s.finishAnonymous("")
	}

	if err := s.cache.SetProfile(user); err != nil {
		s.log.Warn().Err(err).Msg("failed to cache profile")
	}
	return s.finishAuthenticated(user)
}

// Login exchanges credentials for a token pair. On success both tokens are
// stored as cookies and the profile is fetched best-effort: a profile-fetch
// failure falls back to a full CheckAuth rather than failing the login.
func (s *Session) Login(ctx context.Context, identifier, password string) Result {
	s.setChecking()

	pair, err := s.api.Token(ctx, identifier, password)
	if err != nil {
		msg := api.UserMessage(err)
		s.log.Debug().Str("user", identifier).Msg("login rejected")
		s.finishAnonymous(msg)
		return Result{Success: false, Message: msg}
	}

	s.creds.SetPair(pair)

	user, err := s.api.Dashboard(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("profile fetch after login failed, falling back to full check")
		snap := s.CheckAuth(ctx)
		if !snap.Authenticated() {
			// The check suppresses its own error, but a login failure
			// always carries a displayable message.
			return Result{Success: false, Message: api.NetworkErrorMessage}
		}
		return Result{Success: true, RedirectPath: s.consumeRedirect()}
	}

	if err := s.cache.SetProfile(user); err != nil {
		s.log.Warn().Err(err).Msg("failed to cache profile")
	}
	s.finishAuthenticated(user)
	return Result{Success: true, RedirectPath: s.consumeRedirect()}
}

// StashRedirect records where a successful login should land. Survives
// restarts; cleared when consumed or on logout.
func (s *Session) StashRedirect(path string) {
	if err := s.cache.SetRedirectPath(path); err != nil {
		s.log.Warn().Err(err).Msg("failed to stash redirect path")
	}
}

func (s *Session) consumeRedirect() string {
	path := s.cache.RedirectPath()
	if path != "" {
		if err := s.cache.SetRedirectPath(""); err != nil {
			s.log.Warn().Err(err).Msg("failed to clear redirect path")
		}
	}
	return path
}

// Register posts registration data. It does not log the user in; the same
// message normalization as Login applies to failures.
func (s *Session) Register(ctx context.Context, payload api.RegisterPayload) Result {
	if err := s.api.Join(ctx, payload); err != nil {
		return Result{Success: false, Message: api.UserMessage(err)}
	}
	return Result{Success: true}
}

// Logout clears both token cookies, wipes the entire local cache (a
// deliberate blunt reset, not just auth keys), resets in-memory state
// synchronously, and invokes the navigate-home hook. Teardown is purely
// client-side: no server invalidation call is made. Idempotent.
func (s *Session) Logout(ctx context.Context) {
	_ = ctx

	s.purge()
	s.finishAnonymous("")

	if s.navigateHome != nil {
		s.navigateHome()
	}
}

// Refresh posts the refresh token without the bearer header and installs
// the new access token. On any non-OK response or error it clears both
// tokens and reports failure. Never returns a Go error; implements
// api.Refresher for the client's 401 retry.
func (s *Session) Refresh(ctx context.Context) bool {
	refresh := s.creds.RefreshToken()
	if refresh == "" {
		s.creds.Clear()
		return false
	}

	access, err := s.api.RefreshToken(ctx, refresh)
	if err != nil || access == "" {
		s.log.Debug().Err(err).Msg("token refresh failed")
		s.creds.Clear()
		return false
	}

	s.creds.SetAccess(access)
	return true
}

// VerifyToken checks the given access token with the backend, or the current
// one when raw is empty. All errors are swallowed as false.
func (s *Session) VerifyToken(ctx context.Context, raw string) bool {
	if raw == "" {
		raw = s.creds.AccessToken()
	}
	if raw == "" {
		return false
	}
	return s.api.VerifyToken(ctx, raw) == nil
}

// purge drops both stores, honoring the reconciliation rule: whenever the
// cookies are cleared the profile cache is invalidated with them.
func (s *Session) purge() {
	s.creds.Clear()
	s.clearCache()
}

func (s *Session) clearCache() {
	if err := s.cache.Clear(); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear profile cache")
	}
}

func (s *Session) setChecking() {
	s.mu.Lock()
	s.snap.State = StateChecking
	snap, subs := s.snap, s.subscribers()
	s.mu.Unlock()
	notify(subs, snap)
}

func (s *Session) finishAuthenticated(user *users.User) Snapshot {
	return s.transition(Snapshot{State: StateAuthenticated, User: user, Initialized: true})
}

func (s *Session) finishAnonymous(errMsg string) Snapshot {
	return s.transition(Snapshot{State: StateAnonymous, Err: errMsg, Initialized: true})
}

// transition installs a terminal snapshot, manages the renewal timer based
// solely on the authenticated flag's transitions, and notifies observers.
func (s *Session) transition(next Snapshot) Snapshot {
	s.mu.Lock()

	s.snap = next

	if next.State == StateAuthenticated && s.renewStop == nil {
		s.renewStop = make(chan struct{})
		go s.renewLoop(s.renewStop)
	} else if next.State != StateAuthenticated && s.renewStop != nil {
		close(s.renewStop)
		s.renewStop = nil
	}

	snap, subs := s.snap, s.subscribers()
	s.mu.Unlock()

	notify(subs, snap)
	return snap
}

func (s *Session) subscribers() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}

// renewLoop silently refreshes while authenticated. A failed renewal forces
// an immediate logout; no retry is attempted at this layer. This is the
// session's only self-initiated network activity.
func (s *Session) renewLoop(stop chan struct{}) {
	ticker := time.NewTicker(s.renewEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), renewTimeout)
			ok := s.Refresh(ctx)
			cancel()
			if !ok {
				s.log.Error().Msg("periodic renewal failed, logging out")
				s.Logout(context.Background())
				return
			}
			s.log.Debug().Msg("access token renewed")
		}
	}
}
