package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"adminconsole.org/internal/apperr"
	"adminconsole.org/internal/authz"
	"adminconsole.org/internal/directory"
)

// API wraps the console's HTTP surface. Every call goes through the full
// transport chain, so bearer attachment, retry, and error observation apply
// uniformly.
type API struct {
	baseURL string
	http    *http.Client
}

func newAPI(baseURL string, client *http.Client) *API {
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
	}
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperr.Unknown(err.Error())
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return apperr.Unknown(err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, rerr := a.http.Do(req)
	if aerr := apperr.FromResponse(resp, rerr); aerr != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return aerr
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Unknown(err.Error())
	}
	return nil
}

// CSRF primes the anti-forgery cookie. Idempotent.
func (a *API) CSRF(ctx context.Context) error {
	return a.do(ctx, http.MethodGet, "/auth/csrf", nil, nil)
}

// Me resolves the current user from whatever credential the transport holds.
func (a *API) Me(ctx context.Context) (authz.User, error) {
	var user authz.User
	err := a.do(ctx, http.MethodGet, "/auth/me", nil, &user)
	return user, err
}

// Login exchanges credentials for a session. In cookie mode the response
// carries only the user; in token mode it also carries the credential pair.
func (a *API) Login(ctx context.Context, email, password string) (authz.LoginResponse, error) {
	var resp authz.LoginResponse
	err := a.do(ctx, http.MethodPost, "/auth/login", authz.LoginRequest{
		Email:    email,
		Password: password,
	}, &resp)
	return resp, err
}

// RefreshTokens exchanges the refresh credential for a new pair (token mode).
func (a *API) RefreshTokens(ctx context.Context, refreshToken string) (*authz.TokenPair, error) {
	var tokens authz.TokenPair
	err := a.do(ctx, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": refreshToken,
	}, &tokens)
	if err != nil {
		return nil, err
	}
	if tokens.AccessToken == "" {
		return nil, apperr.New(apperr.CodeUnknown, "refresh response missing tokens")
	}
	return &tokens, nil
}

// RefreshCookie rotates the access cookie off the refresh cookie (cookie mode).
func (a *API) RefreshCookie(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/auth/refresh", nil, nil)
}

// Logout invalidates the server-side session.
func (a *API) Logout(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Users directory CRUD.

func (a *API) ListUsers(ctx context.Context) ([]directory.User, error) {
	var users []directory.User
	err := a.do(ctx, http.MethodGet, "/users", nil, &users)
	return users, err
}

func (a *API) GetUser(ctx context.Context, id string) (directory.User, error) {
	var user directory.User
	err := a.do(ctx, http.MethodGet, "/users/"+id, nil, &user)
	return user, err
}

func (a *API) CreateUser(ctx context.Context, req directory.CreateUser) (directory.User, error) {
	var user directory.User
	err := a.do(ctx, http.MethodPost, "/users", req, &user)
	return user, err
}

func (a *API) UpdateUser(ctx context.Context, id string, req directory.UpdateUser) (directory.User, error) {
	var user directory.User
	err := a.do(ctx, http.MethodPut, "/users/"+id, req, &user)
	return user, err
}

func (a *API) DeleteUser(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/users/"+id, nil, nil)
}
