package directory

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"adminconsole.org/internal/authz"
)

func TestSeededAccounts(t *testing.T) {
	ctx := context.Background()
	m := NewSeededMemory()

	admin, err := m.FindByEmail(ctx, SeedAdminEmail)
	if err != nil {
		t.Fatalf("FindByEmail(admin): %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(SeedAdminPassword)); err != nil {
		t.Fatalf("admin password hash mismatch: %v", err)
	}

	authUser := admin.AuthUser()
	if !authUser.HasRole(authz.RoleAdmin) {
		t.Fatal("seeded admin missing admin role")
	}
	if !authUser.HasPermission(authz.PermBillingRead) {
		t.Fatal("seeded admin missing billing.read")
	}

	limited, err := m.FindByEmail(ctx, "USER@acme.test")
	if err != nil {
		t.Fatalf("FindByEmail should normalize case: %v", err)
	}
	limitedAuth := limited.AuthUser()
	if limitedAuth.HasPermission(authz.PermBillingRead) {
		t.Fatal("limited user must not have billing.read")
	}
}

func TestMemoryCRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	u := &User{ID: "u_9", Email: "new@acme.test", FirstName: "New", LastName: "Person", IsActive: true}
	if err := m.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Create(ctx, u); err != ErrAlreadyExists {
		t.Fatalf("duplicate Create = %v, want ErrAlreadyExists", err)
	}

	found, err := m.Find(ctx, "u_9")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found.DisplayName() != "New Person" {
		t.Fatalf("DisplayName = %q", found.DisplayName())
	}

	// Mutating the returned copy must not leak into the store.
	found.FirstName = "Changed"
	again, _ := m.Find(ctx, "u_9")
	if again.FirstName != "New" {
		t.Fatal("store leaked internal state")
	}

	found.LastName = "Name"
	if err := m.Update(ctx, found); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := m.Delete(ctx, "u_9"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Find(ctx, "u_9"); err != ErrNotFound {
		t.Fatalf("Find deleted = %v, want ErrNotFound", err)
	}
	if err := m.Delete(ctx, "u_9"); err != ErrNotFound {
		t.Fatalf("Delete missing = %v, want ErrNotFound", err)
	}
}

func TestListSorted(t *testing.T) {
	ctx := context.Background()
	m := NewSeededMemory()
	users, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len = %d, want 2", len(users))
	}
	if users[0].ID != "u_1" || users[1].ID != "u_2" {
		t.Fatalf("unexpected order: %s, %s", users[0].ID, users[1].ID)
	}
}
