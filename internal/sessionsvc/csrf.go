package sessionsvc

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

// EnsureXSRFCookie sets the readable anti-forgery cookie if absent. Idempotent.
func (c Cookies) EnsureXSRFCookie(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie(XSRFCookie); err == nil {
		return
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     XSRFCookie,
		Value:    hex.EncodeToString(buf),
		Path:     "/",
		HttpOnly: false,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireCSRF enforces the double-submit pattern on state-changing requests:
// the X-XSRF-TOKEN header must match the XSRF-TOKEN cookie. Idempotent
// methods are exempt. Rejections happen before any session logic runs.
func RequireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(XSRFCookie)
		header := r.Header.Get(XSRFHeader)
		if err != nil || cookie.Value == "" || header == "" ||
			subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"CSRF validation failed"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
