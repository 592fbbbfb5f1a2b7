package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"adminconsole.org/internal/audit"
)

func TestRequestIDHonorsCallerHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = audit.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "rid-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if seen != "rid-123" {
		t.Fatalf("expected caller request id, got %q", seen)
	}
	if got := rr.Header().Get(requestIDHeader); got != "rid-123" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
}

func TestRequestIDGeneratesWhenAbsent(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestIPThrottleBlocksAfterBurst(t *testing.T) {
	th := newIPThrottle()
	for i := 0; i < 3; i++ {
		if !th.allow("10.0.0.1", 3, 1) {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if th.allow("10.0.0.1", 3, 1) {
		t.Fatalf("expected throttle after burst")
	}
	if !th.allow("10.0.0.2", 3, 1) {
		t.Fatalf("other client must not be throttled")
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected first forwarded hop, got %q", got)
	}
}
