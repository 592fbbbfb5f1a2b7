// Package directory is the users directory the console manages: the accounts
// that can sign in, and the records the /api/users CRUD surface operates on.
package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"adminconsole.org/internal/authz"
)

var (
	ErrNotFound      = errors.New("directory: not found")
	ErrAlreadyExists = errors.New("directory: already exists")
	ErrInvalidInput  = errors.New("directory: invalid input")
)

// User is a directory record. PasswordHash never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	IsActive     bool      `json:"isActive"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"createdAt"`
	PasswordHash string    `json:"-"`
}

// DisplayName renders the name shown in the console shell.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// AuthUser projects the directory record into the identity the session
// layer issues. Permissions are resolved from the role grants.
func (u *User) AuthUser() authz.User {
	roles := make([]string, len(u.Roles))
	copy(roles, u.Roles)
	return authz.User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName(),
		Roles:       roles,
		Permissions: authz.PermissionsForRoles(u.Roles),
	}
}

// CreateUser is the payload for creating a directory record.
type CreateUser struct {
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	IsActive  bool     `json:"isActive"`
	Roles     []string `json:"roles"`
	Password  string   `json:"password"`
}

// UpdateUser is a partial update; nil fields are left untouched.
type UpdateUser struct {
	Email     *string   `json:"email"`
	FirstName *string   `json:"firstName"`
	LastName  *string   `json:"lastName"`
	IsActive  *bool     `json:"isActive"`
	Roles     *[]string `json:"roles"`
}

// Store describes persistence operations required by the directory.
type Store interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
}

// NormalizeEmail lower-cases and trims an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
