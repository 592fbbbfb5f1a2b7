package authz

import "time"

// User is the identity projection issued to the console. It is immutable once
// issued; refresh replaces it wholesale, never field-by-field.
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// HasRole reports whether the user carries the role.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission reports whether the user carries the permission key.
func (u *User) HasPermission(perm string) bool {
	if u == nil {
		return false
	}
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// HasAll reports whether every permission in perms is present. An empty list
// is always satisfied.
func (u *User) HasAll(perms []string) bool {
	for _, p := range perms {
		if !u.HasPermission(p) {
			return false
		}
	}
	return true
}

// TokenPair is the client-held credential pair of the token strategy. The
// cookie strategy never materializes one.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// LoginRequest carries the credentials submitted to /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the login result. Tokens is set only by the token
// strategy; the cookie strategy sets HttpOnly cookies and omits it.
type LoginResponse struct {
	User   User       `json:"user"`
	Tokens *TokenPair `json:"tokens,omitempty"`
}
