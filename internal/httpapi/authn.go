package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"adminconsole.org/internal/authz"
	"adminconsole.org/internal/sessionsvc"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var errUnauthenticated = errors.New("httpapi: unauthenticated")

// currentUser resolves the caller from the access cookie, falling back to a
// bearer header for non-browser API clients.
func (a *API) currentUser(r *http.Request) (authz.User, error) {
	token := sessionsvc.ReadAccess(r)
	if token == "" {
		var err error
		token, err = extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			return authz.User{}, errUnauthenticated
		}
	}
	user, err := a.sessions.Authenticate(r.Context(), token)
	if err != nil {
		return authz.User{}, errUnauthenticated
	}
	return user, nil
}

// requireUser authenticates the request and stores the user on the context.
// Writes the 401 itself and returns false when unauthenticated.
func (a *API) requireUser(w http.ResponseWriter, r *http.Request) (*http.Request, authz.User, bool) {
	user, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return r, authz.User{}, false
	}
	return r.WithContext(authz.ContextWithUser(r.Context(), user)), user, true
}

// requirePermission writes a 403 and returns false when the user lacks perm.
func requirePermission(w http.ResponseWriter, r *http.Request, user authz.User, perm string) bool {
	if !user.HasPermission(perm) {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
