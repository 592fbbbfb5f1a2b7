package directory

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"adminconsole.org/internal/authz"
)

// Reference accounts seeded into every fresh in-memory directory. These back
// the documented smoke scenarios and the mock backend.
const (
	SeedAdminEmail    = "admin@acme.test"
	SeedAdminPassword = "admin"
	SeedUserEmail     = "user@acme.test"
	SeedUserPassword  = "user"
)

var _ Store = (*Memory)(nil)

// Memory is an in-memory Store used in dev and tests.
type Memory struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewMemory returns an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{users: make(map[string]*User)}
}

// NewSeededMemory returns an in-memory directory with the two reference
// accounts: an active admin and an active limited user.
func NewSeededMemory() *Memory {
	m := NewMemory()
	now := time.Now().UTC()
	m.users["u_1"] = &User{
		ID:           "u_1",
		Email:        SeedAdminEmail,
		FirstName:    "Ada",
		LastName:     "Admin",
		IsActive:     true,
		Roles:        []string{authz.RoleAdmin},
		CreatedAt:    now,
		PasswordHash: mustHash(SeedAdminPassword),
	}
	m.users["u_2"] = &User{
		ID:           "u_2",
		Email:        SeedUserEmail,
		FirstName:    "Uma",
		LastName:     "User",
		IsActive:     true,
		Roles:        []string{authz.RoleUser},
		CreatedAt:    now,
		PasswordHash: mustHash(SeedUserPassword),
	}
	return m
}

// SeedDefaults inserts the reference accounts into an empty store. Used to
// bootstrap a fresh Postgres directory; a populated store is left alone.
func SeedDefaults(ctx context.Context, s Store) error {
	existing, err := s.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	now := time.Now().UTC()
	seeds := []*User{
		{
			ID:           "u_1",
			Email:        SeedAdminEmail,
			FirstName:    "Ada",
			LastName:     "Admin",
			IsActive:     true,
			Roles:        []string{authz.RoleAdmin},
			CreatedAt:    now,
			PasswordHash: mustHash(SeedAdminPassword),
		},
		{
			ID:           "u_2",
			Email:        SeedUserEmail,
			FirstName:    "Uma",
			LastName:     "User",
			IsActive:     true,
			Roles:        []string{authz.RoleUser},
			CreatedAt:    now,
			PasswordHash: mustHash(SeedUserPassword),
		},
	}
	for _, u := range seeds {
		if err := s.Create(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

func mustHash(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

func (m *Memory) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return ErrAlreadyExists
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrAlreadyExists
		}
	}
	cp := cloneUser(u)
	m.users[u.ID] = cp
	return nil
}

func (m *Memory) Find(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *Memory) FindByEmail(_ context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if NormalizeEmail(u.Email) == email {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) List(_ context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) Update(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	m.users[u.ID] = cloneUser(u)
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func cloneUser(u *User) *User {
	cp := *u
	cp.Roles = make([]string, len(u.Roles))
	copy(cp.Roles, u.Roles)
	return &cp
}
