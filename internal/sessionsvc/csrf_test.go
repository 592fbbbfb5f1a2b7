package sessionsvc

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireCSRFExemptsIdempotentMethods(t *testing.T) {
	handler := RequireCSRF(okHandler())
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		req := httptest.NewRequest(method, "/api/auth/me", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("%s blocked with %d", method, rec.Code)
		}
	}
}

func TestRequireCSRFDoubleSubmit(t *testing.T) {
	handler := RequireCSRF(okHandler())

	// No cookie, no header.
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing token passed with %d", rec.Code)
	}

	// Mismatched values.
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.AddCookie(&http.Cookie{Name: XSRFCookie, Value: "aaa"})
	req.Header.Set(XSRFHeader, "bbb")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("mismatched token passed with %d", rec.Code)
	}

	// Matching values.
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.AddCookie(&http.Cookie{Name: XSRFCookie, Value: "match"})
	req.Header.Set(XSRFHeader, "match")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("matching token rejected with %d", rec.Code)
	}
}

func TestEnsureXSRFCookie(t *testing.T) {
	cookies := Cookies{}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/csrf", nil)
	rec := httptest.NewRecorder()
	cookies.EnsureXSRFCookie(rec, req)

	var issued *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == XSRFCookie {
			issued = c
		}
	}
	if issued == nil || issued.Value == "" {
		t.Fatal("XSRF cookie not issued")
	}
	if issued.HttpOnly {
		t.Fatal("XSRF cookie must be readable by script")
	}

	// Second call with the cookie present must not rotate it.
	req = httptest.NewRequest(http.MethodGet, "/api/auth/csrf", nil)
	req.AddCookie(&http.Cookie{Name: XSRFCookie, Value: issued.Value})
	rec = httptest.NewRecorder()
	cookies.EnsureXSRFCookie(rec, req)
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("existing XSRF cookie should not be reissued")
	}
}
