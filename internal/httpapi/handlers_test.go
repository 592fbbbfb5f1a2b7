package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"

	"adminconsole.org/internal/authz"
	"adminconsole.org/internal/directory"
	"adminconsole.org/internal/sessionsvc"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	dir := directory.NewSeededMemory()
	sessions, err := sessionsvc.NewService(dir, sessionsvc.NewMemoryRevocations(), "test-secret")
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	api := New(ReadyProbe{}, "test", sessions, dir, sessionsvc.Cookies{})
	api.rateBurst = 100
	api.ratePerSec = 100

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	client := srv.Client()
	client.Jar = jar

	return &apiClient{
		baseURL: srv.URL,
		client:  client,
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string) *http.Response {
	return c.do(http.MethodGet, path, nil, nil)
}

// xsrfToken returns the value of the anti-forgery cookie held by the jar,
// priming it first if needed.
func (c *apiClient) xsrfToken() string {
	c.t.Helper()
	u, _ := url.Parse(c.baseURL)
	for _, ck := range c.client.Jar.Cookies(u) {
		if ck.Name == sessionsvc.XSRFCookie {
			return ck.Value
		}
	}
	resp := c.get("/api/auth/csrf")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		c.t.Fatalf("csrf prime: got %d", resp.StatusCode)
	}
	for _, ck := range c.client.Jar.Cookies(u) {
		if ck.Name == sessionsvc.XSRFCookie {
			return ck.Value
		}
	}
	c.t.Fatalf("no XSRF cookie after priming")
	return ""
}

func (c *apiClient) postCSRF(path string, body any) *http.Response {
	c.t.Helper()
	return c.do(http.MethodPost, path, body, map[string]string{
		sessionsvc.XSRFHeader: c.xsrfToken(),
	})
}

func (c *apiClient) login(email, password string) *http.Response {
	c.t.Helper()
	return c.postCSRF("/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody[map[string]any](t, resp)
	if body["service"] != "consoled" {
		t.Fatalf("unexpected service: %v", body["service"])
	}
}

func TestLoginSetsCookiesAndReturnsUser(t *testing.T) {
	c := newTestAPI(t)

	resp := c.login(directory.SeedAdminEmail, directory.SeedAdminPassword)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody[struct {
		User authz.User `json:"user"`
	}](t, resp)
	if body.User.Email != directory.SeedAdminEmail {
		t.Fatalf("unexpected user: %+v", body.User)
	}
	if !body.User.HasPermission(authz.PermBillingRead) {
		t.Fatalf("admin should hold billing.read")
	}

	u, _ := url.Parse(c.baseURL)
	var haveAccess, haveRefresh bool
	for _, ck := range c.client.Jar.Cookies(u) {
		switch ck.Name {
		case sessionsvc.AccessCookie:
			haveAccess = true
		case sessionsvc.RefreshCookie:
			haveRefresh = true
		}
	}
	if !haveAccess || !haveRefresh {
		t.Fatalf("expected both session cookies, access=%v refresh=%v", haveAccess, haveRefresh)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	c := newTestAPI(t)
	resp := c.login(directory.SeedAdminEmail, "wrong")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLoginRequiresCSRFHeader(t *testing.T) {
	c := newTestAPI(t)
	// Prime the cookie but deliberately omit the header.
	c.xsrfToken()
	resp := c.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    directory.SeedAdminEmail,
		"password": directory.SeedAdminPassword,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestMeRequiresSession(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/api/auth/me")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestMeReturnsCurrentUser(t *testing.T) {
	c := newTestAPI(t)
	c.login(directory.SeedUserEmail, directory.SeedUserPassword).Body.Close()

	resp := c.get("/api/auth/me")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	user := decodeBody[authz.User](t, resp)
	if user.Email != directory.SeedUserEmail {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.HasPermission(authz.PermBillingRead) {
		t.Fatalf("regular user must not hold billing.read")
	}
}

func TestRefreshReissuesAccessCookie(t *testing.T) {
	c := newTestAPI(t)
	c.login(directory.SeedAdminEmail, directory.SeedAdminPassword).Body.Close()

	resp := c.postCSRF("/api/auth/refresh", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp = c.get("/api/auth/me")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after refresh, got %d", resp.StatusCode)
	}
}

func TestRefreshWithoutCookieIsUnauthorized(t *testing.T) {
	c := newTestAPI(t)
	resp := c.postCSRF("/api/auth/refresh", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLogoutClearsSessionAndRevokesRefresh(t *testing.T) {
	c := newTestAPI(t)
	c.login(directory.SeedAdminEmail, directory.SeedAdminPassword).Body.Close()

	// Keep a copy of the refresh cookie to replay after logout.
	u, _ := url.Parse(c.baseURL)
	var refresh string
	for _, ck := range c.client.Jar.Cookies(u) {
		if ck.Name == sessionsvc.RefreshCookie {
			refresh = ck.Value
		}
	}
	if refresh == "" {
		t.Fatalf("no refresh cookie after login")
	}

	resp := c.postCSRF("/api/auth/logout", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp = c.get("/api/auth/me")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}

	// Replaying the revoked refresh credential must fail.
	req, _ := http.NewRequest(http.MethodPost, c.baseURL+"/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: sessionsvc.RefreshCookie, Value: refresh})
	req.Header.Set(sessionsvc.XSRFHeader, c.xsrfToken())
	replay, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	replay.Body.Close()
	if replay.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 replaying revoked refresh, got %d", replay.StatusCode)
	}
}

func TestLogoutWithoutSessionSucceeds(t *testing.T) {
	c := newTestAPI(t)
	resp := c.postCSRF("/api/auth/logout", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func TestBearerHeaderAuthenticates(t *testing.T) {
	c := newTestAPI(t)

	dir := directory.NewSeededMemory()
	sessions, err := sessionsvc.NewService(dir, sessionsvc.NewMemoryRevocations(), "test-secret")
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	// Mint a token against the same secret the server verifies with.
	_, pair, err := sessions.Login(t.Context(), directory.SeedAdminEmail, directory.SeedAdminPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, c.baseURL+"/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.Access)
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestUsersListRequiresReadPermission(t *testing.T) {
	c := newTestAPI(t)
	c.login(directory.SeedUserEmail, directory.SeedUserPassword).Body.Close()

	resp := c.do(http.MethodGet, "/api/users", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	users := decodeBody[[]directory.User](t, resp)
	if len(users) != 2 {
		t.Fatalf("expected 2 seeded users, got %d", len(users))
	}
}

func TestUsersCreateForbiddenWithoutWritePermission(t *testing.T) {
	c := newTestAPI(t)
	c.login(directory.SeedUserEmail, directory.SeedUserPassword).Body.Close()

	resp := c.postCSRF("/api/users", directory.CreateUser{
		Email:    "new@acme.test",
		Password: "secret",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestUsersCRUDAsAdmin(t *testing.T) {
	c := newTestAPI(t)
	c.login(directory.SeedAdminEmail, directory.SeedAdminPassword).Body.Close()

	resp := c.postCSRF("/api/users", directory.CreateUser{
		Email:     "carol@acme.test",
		FirstName: "Carol",
		LastName:  "Chen",
		IsActive:  true,
		Roles:     []string{authz.RoleUser},
		Password:  "carol-secret",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	created := decodeBody[directory.User](t, resp)
	if created.ID == "" {
		t.Fatalf("expected assigned id")
	}

	resp = c.do(http.MethodGet, "/api/users/"+created.ID, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	newName := "Caroline"
	resp = c.do(http.MethodPut, "/api/users/"+created.ID, directory.UpdateUser{
		FirstName: &newName,
	}, map[string]string{sessionsvc.XSRFHeader: c.xsrfToken()})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	updated := decodeBody[directory.User](t, resp)
	if updated.FirstName != newName {
		t.Fatalf("update not applied: %+v", updated)
	}

	resp = c.do(http.MethodDelete, "/api/users/"+created.ID, nil, map[string]string{
		sessionsvc.XSRFHeader: c.xsrfToken(),
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp = c.do(http.MethodGet, "/api/users/"+created.ID, nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestUserResourceNotFound(t *testing.T) {
	c := newTestAPI(t)
	c.login(directory.SeedAdminEmail, directory.SeedAdminPassword).Body.Close()

	resp := c.do(http.MethodGet, "/api/users/u_missing", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
