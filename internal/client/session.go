package client

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"adminconsole.org/internal/apperr"
	"adminconsole.org/internal/authz"
	"adminconsole.org/internal/notify"
	"adminconsole.org/internal/obs"
)

// LoginPath is where unauthenticated navigation is sent, carrying the
// attempted destination as returnUrl.
const LoginPath = "/login"

// ForbiddenPath is the terminal access-denied destination. No return URL:
// denied access is not resumable.
const ForbiddenPath = "/forbidden"

// Navigator performs a client-side navigation. Injected so tests and
// headless callers can observe redirects.
type Navigator func(path string)

// Options configure a Manager.
type Options struct {
	// BaseURL is the API root, e.g. "http://localhost:8080/api".
	BaseURL string
	// Strategy picks cookie or token mode. Fixed for the process lifetime.
	Strategy Strategy
	// Store persists the session across restarts. Token mode, dev only.
	// Nil disables persistence.
	Store SessionStore
	// Notifier receives user-facing notifications. Nil disables them.
	Notifier *notify.Center
	// Navigate performs redirects. Nil means redirects are dropped.
	Navigate Navigator
	// Transport substitutes the wire, e.g. with the mock backend. Nil uses
	// the default HTTP transport.
	Transport http.RoundTripper
	// Timeout bounds every round trip. Zero means 15 seconds.
	Timeout time.Duration
}

// Manager is the single source of truth for "who is logged in" and the only
// component that mutates session state.
type Manager struct {
	strategy Strategy
	api      *API
	state    *stateCell
	store    SessionStore
	notes    *notify.Center
	navigate Navigator

	flight   singleflight.Group
	initOnce sync.Once
}

// NewManager wires the transport chain, the API client, and the session
// state into a ready-to-use Manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Strategy == "" {
		opts.Strategy = StrategyCookie
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	var jar http.CookieJar
	if opts.Strategy == StrategyCookie {
		j, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		jar = j
	}

	chain, auth := newTransportChain(opts.Transport, jar, opts.Notifier)
	httpClient := &http.Client{
		Transport: chain,
		Jar:       jar,
		Timeout:   timeout,
	}

	m := &Manager{
		strategy: opts.Strategy,
		api:      newAPI(opts.BaseURL, httpClient),
		state:    newStateCell(opts.Strategy),
		store:    opts.Store,
		notes:    opts.Notifier,
		navigate: opts.Navigate,
	}
	auth.bind(m)
	return m, nil
}

// Strategy returns the mode fixed at construction.
func (m *Manager) Strategy() Strategy { return m.strategy }

// API exposes the console's HTTP surface through the authenticated transport.
func (m *Manager) API() *API { return m.api }

// IsAuthenticated is strategy-dependent: user present in cookie mode, access
// token held in token mode.
func (m *Manager) IsAuthenticated() bool { return m.state.authenticated() }

// CurrentUser returns a copy of the session user, or nil.
func (m *Manager) CurrentUser() *authz.User { return m.state.currentUser() }

// HasPermission reports whether the session user carries the permission.
func (m *Manager) HasPermission(perm string) bool {
	return m.state.currentUser().HasPermission(perm)
}

// AccessToken returns the client-held access token, empty in cookie mode.
func (m *Manager) AccessToken() string { return m.state.accessToken() }

// Subscribe registers a session-change listener.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) { return m.state.subscribe() }

// Init bootstraps the session. Idempotent and memoized: concurrent callers
// block on the first in-flight bootstrap and share its outcome, later
// callers return immediately.
func (m *Manager) Init(ctx context.Context) error {
	m.initOnce.Do(func() {
		if m.strategy == StrategyCookie {
			m.initCookie(ctx)
		} else {
			m.initToken(ctx)
		}
	})
	return nil
}

// initCookie primes CSRF then asks the server who we are. Any failure is the
// ordinary "not logged in" state, not an error.
func (m *Manager) initCookie(ctx context.Context) {
	if err := m.api.CSRF(ctx); err != nil {
		obs.Debug("csrf priming failed", map[string]any{"error": err.Error()})
		return
	}
	user, err := m.api.Me(ctx)
	if err != nil {
		return
	}
	m.state.set(&user, nil)
}

// initToken restores a persisted session, adopts it immediately to avoid a
// logged-out flash, then validates it. Validation failure clears everything.
func (m *Manager) initToken(ctx context.Context) {
	if m.store == nil {
		return
	}
	rec, err := m.store.Load()
	if err != nil {
		obs.Warn("session restore failed", map[string]any{"error": err.Error()})
		return
	}
	if !rec.complete() {
		return
	}

	user := rec.User
	tokens := &authz.TokenPair{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
	}
	if exp, perr := time.Parse(time.RFC3339, rec.ExpiresAt); perr == nil {
		tokens.ExpiresAt = exp
	}
	m.state.set(&user, tokens)

	fresh, err := m.api.Me(ctx)
	if err != nil {
		obs.Warn("restored session invalid", map[string]any{"error": err.Error()})
		m.clearSession()
		return
	}
	// Adopt the server's view, roles and permissions may have moved on.
	m.state.set(&fresh, tokens)
}

// Login exchanges credentials for a session. Failures never escape: the
// result is a boolean, the user sees a notification, and the prior session
// is left untouched.
func (m *Manager) Login(ctx context.Context, email, password string) bool {
	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		obs.Warn("login failed", map[string]any{
			"email": email,
			"code":  string(apperr.CodeOf(err)),
			"error": err.Error(),
		})
		if m.notes != nil {
			m.notes.Error("Sign in failed", "Invalid credentials")
		}
		return false
	}

	user := resp.User
	if m.strategy == StrategyCookie {
		m.state.set(&user, nil)
	} else {
		m.state.set(&user, resp.Tokens)
		m.persist()
	}
	return true
}

// Logout never fails from the caller's perspective: server-side invalidation
// is best-effort, the local session is always cleared, and navigation to the
// login entry point is unconditional.
func (m *Manager) Logout(ctx context.Context) {
	if m.strategy == StrategyCookie {
		if err := m.api.Logout(ctx); err != nil {
			obs.Warn("server logout failed", map[string]any{"error": err.Error()})
		}
	}
	m.clearSession()
	if m.navigate != nil {
		m.navigate(LoginPath)
	}
}

// RefreshTokens rotates the credential pair (token mode). Single-flight:
// concurrent callers share one refresh. Returns nil without a network call
// when no refresh token is held, and nil after clearing the session when the
// rotation fails.
func (m *Manager) RefreshTokens(ctx context.Context) *authz.TokenPair {
	if m.strategy != StrategyToken {
		return nil
	}
	current := m.state.refreshToken()
	if current == "" {
		return nil
	}

	v, _, _ := m.flight.Do("refresh-tokens", func() (any, error) {
		refresh := m.state.refreshToken()
		if refresh != current {
			// A concurrent caller already resolved this cycle, either by
			// rotating the pair or by clearing the session.
			return m.state.snapshot().Tokens, nil
		}
		tokens, err := m.api.RefreshTokens(ctx, refresh)
		if err != nil {
			obs.Warn("token refresh failed", map[string]any{"error": err.Error()})
			m.clearSession()
			return (*authz.TokenPair)(nil), nil
		}
		m.state.set(m.state.currentUser(), tokens)
		m.persist()
		return tokens, nil
	})
	return v.(*authz.TokenPair)
}

// RefreshCookieSession rotates the access cookie then re-fetches the user
// (cookie mode). Single-flight. Failure clears the session.
func (m *Manager) RefreshCookieSession(ctx context.Context) bool {
	if m.strategy != StrategyCookie {
		return false
	}
	v, _, _ := m.flight.Do("refresh-cookie", func() (any, error) {
		if err := m.api.RefreshCookie(ctx); err != nil {
			obs.Warn("cookie refresh failed", map[string]any{"error": err.Error()})
			m.clearSession()
			return false, nil
		}
		user, err := m.api.Me(ctx)
		if err != nil {
			obs.Warn("post-refresh identity fetch failed", map[string]any{"error": err.Error()})
			m.clearSession()
			return false, nil
		}
		m.state.set(&user, nil)
		return true, nil
	})
	return v.(bool)
}

func (m *Manager) clearSession() {
	m.state.clear()
	if m.store != nil {
		if err := m.store.Clear(); err != nil {
			obs.Warn("session record removal failed", map[string]any{"error": err.Error()})
		}
	}
}

func (m *Manager) persist() {
	if m.store == nil {
		return
	}
	snap := m.state.snapshot()
	if snap.User == nil || snap.Tokens == nil {
		return
	}
	rec := &SessionRecord{
		Version:      sessionRecordVersion,
		User:         *snap.User,
		AccessToken:  snap.Tokens.AccessToken,
		RefreshToken: snap.Tokens.RefreshToken,
		ExpiresAt:    snap.Tokens.ExpiresAt.Format(time.RFC3339),
	}
	if err := m.store.Save(rec); err != nil {
		obs.Warn("session persistence failed", map[string]any{"error": err.Error()})
	}
}
