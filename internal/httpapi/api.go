// Package httpapi is the HTTP surface of consoled: the auth/session
// endpoints, the users directory CRUD, and operational probes.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"adminconsole.org/internal/directory"
	"adminconsole.org/internal/obs"
	"adminconsole.org/internal/sessionsvc"
)

// ReadyProbe checks downstream readiness (e.g. DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	sessions *sessionsvc.Service
	dir      directory.Store
	cookies  sessionsvc.Cookies

	throttle   *ipThrottle
	rateBurst  int
	ratePerSec int
}

// New wires the full route table.
func New(rp ReadyProbe, version string, sessions *sessionsvc.Service, dir directory.Store, cookies sessionsvc.Cookies) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		sessions:   sessions,
		dir:        dir,
		cookies:    cookies,
		throttle:   newIPThrottle(),
		rateBurst:  30,
		ratePerSec: 10,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	authLimited := func(h http.HandlerFunc) http.Handler {
		return a.rateLimit(sessionsvc.RequireCSRF(h))
	}

	a.mux.HandleFunc("/api/auth/csrf", a.handleCSRF)
	a.mux.HandleFunc("/api/auth/me", a.handleMe)
	a.mux.Handle("/api/auth/login", authLimited(a.handleLogin))
	a.mux.Handle("/api/auth/refresh", authLimited(a.handleRefresh))
	a.mux.Handle("/api/auth/logout", sessionsvc.RequireCSRF(http.HandlerFunc(a.handleLogout)))

	a.mux.Handle("/api/users", sessionsvc.RequireCSRF(http.HandlerFunc(a.handleUsersCollection)))
	a.mux.Handle("/api/users/", sessionsvc.RequireCSRF(http.HandlerFunc(a.handleUserResource)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// SetAuthRateLimit overrides the default throttle on the auth endpoints.
// Non-positive values are ignored.
func (a *API) SetAuthRateLimit(burst, perSec int) {
	if burst > 0 {
		a.rateBurst = burst
	}
	if perSec > 0 {
		a.ratePerSec = perSec
	}
}

// rateLimit reads the configured limits at request time so they can be
// tuned after construction.
func (a *API) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.throttle.allow(clientIP(r), a.rateBurst, a.ratePerSec) {
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "consoled",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
