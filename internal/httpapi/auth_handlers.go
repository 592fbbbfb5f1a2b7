package httpapi

import (
	"errors"
	"net/http"

	"adminconsole.org/internal/audit"
	"adminconsole.org/internal/authz"
	"adminconsole.org/internal/sessionsvc"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User authz.User `json:"user"`
}

// handleCSRF primes the anti-forgery cookie. Idempotent.
func (a *API) handleCSRF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	a.cookies.EnsureXSRFCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// handleMe resolves the current user from the access credential.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	a.cookies.EnsureXSRFCookie(w, r)

	user, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.cookies.EnsureXSRFCookie(w, r)

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "missing credentials")
		return
	}

	user, pair, err := a.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, sessionsvc.ErrInvalidCredentials) {
			_ = audit.LogEvent(r.Context(), "auth.login.rejected", map[string]any{"email": req.Email})
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}

	a.cookies.SetAccess(w, pair.Access, a.sessions.AccessTTL())
	a.cookies.SetRefresh(w, pair.Refresh, a.sessions.RefreshTTL())

	_ = audit.LogEvent(r.Context(), "auth.login.succeeded", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})

	writeJSON(w, http.StatusOK, loginResponse{User: user})
}

// handleRefresh rotates only the access credential off the refresh cookie.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.cookies.EnsureXSRFCookie(w, r)

	refresh := sessionsvc.ReadRefresh(r)
	if refresh == "" {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, access, _, err := a.sessions.Refresh(r.Context(), refresh)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	a.cookies.SetAccess(w, access, a.sessions.AccessTTL())
	_ = audit.LogEvent(r.Context(), "auth.session.refreshed", map[string]any{"user_id": user.ID})
	w.WriteHeader(http.StatusNoContent)
}

// handleLogout invalidates the refresh credential and clears both cookies.
// Always succeeds from the client's perspective.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.cookies.EnsureXSRFCookie(w, r)

	if refresh := sessionsvc.ReadRefresh(r); refresh != "" {
		if err := a.sessions.Logout(r.Context(), refresh); err != nil {
			// Best-effort: revocation store being down must not block logout.
			_ = audit.LogEvent(r.Context(), "auth.logout.revoke_failed", map[string]any{"error": err.Error()})
		}
	}

	a.cookies.Clear(w)
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	w.WriteHeader(http.StatusNoContent)
}
