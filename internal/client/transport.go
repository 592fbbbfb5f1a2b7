package client

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"adminconsole.org/internal/authz"
	"adminconsole.org/internal/notify"
	"adminconsole.org/internal/obs"
)

// SkipRefreshHeader marks a request that must never trigger a
// refresh-and-retry cycle. Retried requests and the auth endpoints carry it
// to break refresh loops.
const SkipRefreshHeader = "X-Skip-Auth-Refresh"

const (
	xsrfCookieName = "XSRF-TOKEN"
	xsrfHeaderName = "X-XSRF-TOKEN"
)

var authEndpointSuffixes = []string{
	"/auth/csrf",
	"/auth/me",
	"/auth/login",
	"/auth/refresh",
	"/auth/logout",
}

// credentialFreeSuffixes are the session endpoints that must never carry a
// bearer token: they establish or destroy the credential rather than use it.
// The whoami endpoint is the exception, it validates the access credential.
var credentialFreeSuffixes = []string{
	"/auth/csrf",
	"/auth/login",
	"/auth/refresh",
	"/auth/logout",
}

func pathHasSuffix(path string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// isAuthEndpoint reports whether the request targets the session endpoints
// themselves. Those never trigger a refresh-and-retry cycle.
func isAuthEndpoint(path string) bool {
	return pathHasSuffix(path, authEndpointSuffixes)
}

// sessionRefresher is what the auth stage needs from the Manager. The
// Manager binds itself after construction; until then the stage dispatches
// without retry.
type sessionRefresher interface {
	AccessToken() string
	RefreshTokens(ctx context.Context) *authz.TokenPair
	RefreshCookieSession(ctx context.Context) bool
	Logout(ctx context.Context)
}

// requestIDTransport stamps each outgoing request with an identifier the
// server echoes back, so client and server logs correlate.
type requestIDTransport struct {
	next http.RoundTripper
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("X-Request-Id") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("X-Request-Id", uuid.NewString())
	}
	return t.next.RoundTrip(req)
}

// loadingTransport tracks in-flight requests, the console's loading
// indicator signal.
type loadingTransport struct {
	next http.RoundTripper
}

func (t *loadingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	obs.ClientRequestStarted()
	resp, err := t.next.RoundTrip(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	obs.ClientRequestFinished(req.Method, status)
	return resp, err
}

// errorTransport is the central failure observer: every failed round trip is
// logged, and non-401 failures outside the auth endpoints surface a generic
// notification. 401 is deliberately silent since the guard redirect is the
// user-visible signal.
type errorTransport struct {
	next  http.RoundTripper
	notes *notify.Center
}

func (t *errorTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		obs.Warn("http request failed", map[string]any{
			"method": req.Method,
			"url":    req.URL.String(),
			"error":  err.Error(),
		})
		if t.notes != nil && !isAuthEndpoint(req.URL.Path) {
			t.notes.Error("Request failed", "A network error occurred. Please try again.")
		}
		return resp, err
	}
	if resp.StatusCode >= 400 {
		obs.Warn("http request rejected", map[string]any{
			"method": req.Method,
			"url":    req.URL.String(),
			"status": resp.StatusCode,
		})
		if t.notes != nil && resp.StatusCode != http.StatusUnauthorized && !isAuthEndpoint(req.URL.Path) {
			t.notes.Error("Request failed", "The server rejected the request.")
		}
	}
	return resp, nil
}

// xsrfTransport mirrors the anti-forgery cookie into the companion header on
// state-changing requests (the double-submit pattern).
type xsrfTransport struct {
	next http.RoundTripper
	jar  http.CookieJar
}

func (t *xsrfTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return t.next.RoundTrip(req)
	}
	if t.jar == nil || req.Header.Get(xsrfHeaderName) != "" {
		return t.next.RoundTrip(req)
	}
	for _, ck := range t.jar.Cookies(req.URL) {
		if ck.Name == xsrfCookieName {
			req = req.Clone(req.Context())
			req.Header.Set(xsrfHeaderName, ck.Value)
			break
		}
	}
	return t.next.RoundTrip(req)
}

// authTransport attaches the bearer credential and performs the
// single-retry-on-401 cycle. At most one retry per original request; the
// single-flight discipline on the refresh itself lives in the Manager.
type authTransport struct {
	next http.RoundTripper
	jar  http.CookieJar

	mu        sync.RWMutex
	refresher sessionRefresher
}

// bind wires the Manager in after construction. The transport needs the
// Manager for refresh, and the Manager's API client needs the transport.
func (t *authTransport) bind(r sessionRefresher) {
	t.mu.Lock()
	t.refresher = r
	t.mu.Unlock()
}

func (t *authTransport) session() sessionRefresher {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.refresher
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	refresher := t.session()
	authPath := isAuthEndpoint(req.URL.Path)

	if refresher != nil && !pathHasSuffix(req.URL.Path, credentialFreeSuffixes) {
		if token := refresher.AccessToken(); token != "" {
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if refresher == nil || authPath || req.Header.Get(SkipRefreshHeader) != "" {
		return resp, nil
	}

	ctx := req.Context()
	if refresher.AccessToken() == "" {
		if !refresher.RefreshCookieSession(ctx) {
			refresher.Logout(ctx)
			return resp, nil
		}
	} else {
		if refresher.RefreshTokens(ctx) == nil {
			refresher.Logout(ctx)
			return resp, nil
		}
	}

	retry, ok := cloneForRetry(req)
	if !ok {
		return resp, nil
	}
	retry.Header.Set(SkipRefreshHeader, "1")
	if token := refresher.AccessToken(); token != "" {
		retry.Header.Set("Authorization", "Bearer "+token)
	} else if t.jar != nil {
		// The clone still carries the Cookie header the client stamped from
		// the jar before the refresh. Restamp from the jar so the retry sends
		// the reissued session cookie, not the expired one.
		retry.Header.Del("Cookie")
		for _, ck := range t.jar.Cookies(retry.URL) {
			retry.AddCookie(ck)
		}
		retry.Header.Del(xsrfHeaderName)
	}
	drain(resp)
	return t.next.RoundTrip(retry)
}

// cloneForRetry rebuilds the request with a fresh body. Requests whose body
// cannot be replayed are not retried.
func cloneForRetry(req *http.Request) (*http.Request, bool) {
	if req.Body != nil && req.GetBody == nil {
		return nil, false
	}
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, false
		}
		clone.Body = body
	}
	return clone, true
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()
}

// newTransportChain assembles the fixed middleware order: request id, then
// loading indicator, then central error observation, then bearer
// attach/retry, then anti-forgery mirroring, then the wire (or the mock
// backend standing in for it).
func newTransportChain(base http.RoundTripper, jar http.CookieJar, notes *notify.Center) (http.RoundTripper, *authTransport) {
	if base == nil {
		base = http.DefaultTransport
	}
	auth := &authTransport{next: &xsrfTransport{next: base, jar: jar}, jar: jar}
	var rt http.RoundTripper = auth
	rt = &errorTransport{next: rt, notes: notes}
	rt = &loadingTransport{next: rt}
	rt = &requestIDTransport{next: rt}
	return rt, auth
}
