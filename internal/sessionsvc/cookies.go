package sessionsvc

import (
	"net/http"
	"time"
)

// Cookie and header names of the cookie session contract.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
	XSRFCookie    = "XSRF-TOKEN"
	XSRFHeader    = "X-XSRF-TOKEN"
)

// Cookies writes and clears session cookies with consistent attributes.
type Cookies struct {
	// Secure marks cookies Secure; enabled in production deployments.
	Secure bool
}

func (c Cookies) base(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge / time.Second),
	}
}

// SetAccess writes the HttpOnly access token cookie.
func (c Cookies) SetAccess(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, c.base(AccessCookie, token, ttl))
}

// SetRefresh writes the HttpOnly refresh token cookie.
func (c Cookies) SetRefresh(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, c.base(RefreshCookie, token, ttl))
}

// Clear expires both session cookies.
func (c Cookies) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		cookie := c.base(name, "", 0)
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
	}
}

// ReadAccess extracts the access token cookie value, if any.
func ReadAccess(r *http.Request) string {
	return readCookie(r, AccessCookie)
}

// ReadRefresh extracts the refresh token cookie value, if any.
func ReadRefresh(r *http.Request) string {
	return readCookie(r, RefreshCookie)
}

func readCookie(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
