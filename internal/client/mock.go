package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"adminconsole.org/internal/authz"
	"adminconsole.org/internal/directory"
	"adminconsole.org/internal/ids"
	"adminconsole.org/internal/obs"
	"adminconsole.org/internal/sessionsvc"
)

// MockBackend stands in for the wire in dev mode: an http.RoundTripper that
// answers the console's API in memory. Tokens are opaque and rotated on
// refresh; the seeded directory provides the two reference accounts.
type MockBackend struct {
	dir     directory.Store
	latency time.Duration

	mu              sync.Mutex
	accessToUserID  map[string]string
	refreshToUserID map[string]string
	refreshToAccess map[string]string
}

// NewMockBackend seeds the reference accounts. latency simulates network
// round-trip time; zero disables it.
func NewMockBackend(latency time.Duration) *MockBackend {
	return &MockBackend{
		dir:             directory.NewSeededMemory(),
		latency:         latency,
		accessToUserID:  make(map[string]string),
		refreshToUserID: make(map[string]string),
		refreshToAccess: make(map[string]string),
	}
}

func (m *MockBackend) RoundTrip(req *http.Request) (*http.Response, error) {
	if m.latency > 0 {
		time.Sleep(m.latency)
	}

	path := req.URL.Path
	switch {
	case strings.HasSuffix(path, "/auth/csrf") && req.Method == http.MethodGet:
		return mockResponse(req, http.StatusNoContent, nil), nil
	case strings.HasSuffix(path, "/auth/login") && req.Method == http.MethodPost:
		return m.login(req), nil
	case strings.HasSuffix(path, "/auth/refresh") && req.Method == http.MethodPost:
		return m.refresh(req), nil
	case strings.HasSuffix(path, "/auth/me") && req.Method == http.MethodGet:
		return m.me(req), nil
	case strings.HasSuffix(path, "/auth/logout") && req.Method == http.MethodPost:
		return m.logout(req), nil
	case strings.HasSuffix(path, "/users"):
		return m.usersCollection(req), nil
	case strings.Contains(path, "/users/"):
		return m.userResource(req), nil
	}
	obs.Warn("mock backend: unhandled route", map[string]any{
		"method": req.Method,
		"path":   path,
	})
	return mockResponse(req, http.StatusNotFound, map[string]string{"error": "not found"}), nil
}

func (m *MockBackend) login(req *http.Request) *http.Response {
	var creds authz.LoginRequest
	if req.Body == nil {
		return mockResponse(req, http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}
	if err := json.NewDecoder(req.Body).Decode(&creds); err != nil {
		return mockResponse(req, http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}
	rec, err := m.dir.FindByEmail(req.Context(), directory.NormalizeEmail(creds.Email))
	if err != nil || !rec.IsActive {
		return mockResponse(req, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	if sessionsvc.VerifyPassword(rec.PasswordHash, creds.Password) != nil {
		return mockResponse(req, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	tokens := m.issueTokens(rec.ID)
	return mockResponse(req, http.StatusOK, authz.LoginResponse{
		User:   rec.AuthUser(),
		Tokens: &tokens,
	})
}

func (m *MockBackend) refresh(req *http.Request) *http.Response {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if req.Body == nil {
		return mockResponse(req, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		return mockResponse(req, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	// Identity rides the refresh token itself so refresh keeps working after
	// the paired access token has expired.
	m.mu.Lock()
	userID, ok := m.refreshToUserID[body.RefreshToken]
	if !ok {
		m.mu.Unlock()
		return mockResponse(req, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	oldAccess := m.refreshToAccess[body.RefreshToken]
	delete(m.refreshToUserID, body.RefreshToken)
	delete(m.refreshToAccess, body.RefreshToken)
	delete(m.accessToUserID, oldAccess)
	m.mu.Unlock()

	tokens := m.issueTokens(userID)
	return mockResponse(req, http.StatusOK, tokens)
}

func (m *MockBackend) me(req *http.Request) *http.Response {
	rec, ok := m.authenticate(req)
	if !ok {
		return mockResponse(req, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	return mockResponse(req, http.StatusOK, rec.AuthUser())
}

func (m *MockBackend) logout(req *http.Request) *http.Response {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if req.Body != nil {
		_ = json.NewDecoder(req.Body).Decode(&body)
	}
	if body.RefreshToken != "" {
		m.mu.Lock()
		if access, ok := m.refreshToAccess[body.RefreshToken]; ok {
			delete(m.refreshToAccess, body.RefreshToken)
			delete(m.accessToUserID, access)
		}
		delete(m.refreshToUserID, body.RefreshToken)
		m.mu.Unlock()
	}
	return mockResponse(req, http.StatusNoContent, nil)
}

func (m *MockBackend) usersCollection(req *http.Request) *http.Response {
	if _, ok := m.authenticate(req); !ok {
		return mockResponse(req, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	switch req.Method {
	case http.MethodGet:
		users, err := m.dir.List(req.Context())
		if err != nil {
			return mockResponse(req, http.StatusInternalServerError, map[string]string{"error": "list failed"})
		}
		return mockResponse(req, http.StatusOK, users)
	case http.MethodPost:
		var create directory.CreateUser
		if err := json.NewDecoder(req.Body).Decode(&create); err != nil {
			return mockResponse(req, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		}
		rec := &directory.User{
			ID:        ids.New(),
			Email:     directory.NormalizeEmail(create.Email),
			FirstName: create.FirstName,
			LastName:  create.LastName,
			IsActive:  create.IsActive,
			Roles:     create.Roles,
			CreatedAt: time.Now().UTC(),
		}
		if err := m.dir.Create(req.Context(), rec); err != nil {
			return mockResponse(req, http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return mockResponse(req, http.StatusCreated, rec)
	}
	return mockResponse(req, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func (m *MockBackend) userResource(req *http.Request) *http.Response {
	if _, ok := m.authenticate(req); !ok {
		return mockResponse(req, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	idx := strings.LastIndex(req.URL.Path, "/users/")
	id := req.URL.Path[idx+len("/users/"):]

	switch req.Method {
	case http.MethodGet:
		rec, err := m.dir.Find(req.Context(), id)
		if err != nil {
			return mockNotFound(req, err)
		}
		return mockResponse(req, http.StatusOK, rec)
	case http.MethodPut:
		var patch directory.UpdateUser
		if err := json.NewDecoder(req.Body).Decode(&patch); err != nil {
			return mockResponse(req, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		}
		rec, err := m.dir.Find(req.Context(), id)
		if err != nil {
			return mockNotFound(req, err)
		}
		if patch.Email != nil {
			rec.Email = directory.NormalizeEmail(*patch.Email)
		}
		if patch.FirstName != nil {
			rec.FirstName = *patch.FirstName
		}
		if patch.LastName != nil {
			rec.LastName = *patch.LastName
		}
		if patch.IsActive != nil {
			rec.IsActive = *patch.IsActive
		}
		if patch.Roles != nil {
			rec.Roles = *patch.Roles
		}
		if err := m.dir.Update(req.Context(), rec); err != nil {
			return mockNotFound(req, err)
		}
		return mockResponse(req, http.StatusOK, rec)
	case http.MethodDelete:
		if err := m.dir.Delete(req.Context(), id); err != nil {
			return mockNotFound(req, err)
		}
		return mockResponse(req, http.StatusNoContent, nil)
	}
	return mockResponse(req, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func (m *MockBackend) issueTokens(userID string) authz.TokenPair {
	tokens := authz.TokenPair{
		AccessToken:  "acc_" + uuid.NewString(),
		RefreshToken: "ref_" + uuid.NewString(),
		ExpiresAt:    time.Now().Add(15 * time.Minute).UTC(),
	}
	m.mu.Lock()
	m.accessToUserID[tokens.AccessToken] = userID
	m.refreshToUserID[tokens.RefreshToken] = userID
	m.refreshToAccess[tokens.RefreshToken] = tokens.AccessToken
	m.mu.Unlock()
	return tokens
}

// RevokeAccessTokens drops every issued access token, simulating server-side
// expiry so tests and the smoke binary can exercise the refresh cycle.
func (m *MockBackend) RevokeAccessTokens() {
	m.mu.Lock()
	m.accessToUserID = make(map[string]string)
	m.mu.Unlock()
}

// RevokeAll drops every credential, making refresh fail too.
func (m *MockBackend) RevokeAll() {
	m.mu.Lock()
	m.accessToUserID = make(map[string]string)
	m.refreshToUserID = make(map[string]string)
	m.refreshToAccess = make(map[string]string)
	m.mu.Unlock()
}

func (m *MockBackend) authenticate(req *http.Request) (*directory.User, bool) {
	header := req.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, false
	}
	token := strings.TrimSpace(header[len("Bearer "):])

	m.mu.Lock()
	userID := m.accessToUserID[token]
	m.mu.Unlock()
	if userID == "" {
		return nil, false
	}
	rec, err := m.dir.Find(req.Context(), userID)
	if err != nil {
		return nil, false
	}
	return rec, true
}

func mockNotFound(req *http.Request, err error) *http.Response {
	if errors.Is(err, directory.ErrNotFound) {
		return mockResponse(req, http.StatusNotFound, map[string]string{"error": "not found"})
	}
	return mockResponse(req, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func mockResponse(req *http.Request, status int, body any) *http.Response {
	var buf bytes.Buffer
	header := make(http.Header)
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
		header.Set("Content-Type", "application/json; charset=utf-8")
	}
	return &http.Response{
		StatusCode:    status,
		Status:        http.StatusText(status),
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(buf.Bytes())),
		ContentLength: int64(buf.Len()),
		Request:       req,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
	}
}
