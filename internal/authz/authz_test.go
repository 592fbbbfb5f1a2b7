package authz

import (
	"slices"
	"testing"
)

func TestHasPermission(t *testing.T) {
	u := &User{Permissions: []string{PermUsersRead, PermSettingsRead}}
	if !u.HasPermission(PermUsersRead) {
		t.Fatal("expected users.read")
	}
	if u.HasPermission(PermBillingRead) {
		t.Fatal("unexpected billing.read")
	}

	var nilUser *User
	if nilUser.HasPermission(PermUsersRead) {
		t.Fatal("nil user must not have permissions")
	}
}

func TestHasAll(t *testing.T) {
	u := &User{Permissions: []string{PermUsersRead, PermUsersWrite}}
	if !u.HasAll(nil) {
		t.Fatal("empty requirement must always pass")
	}
	if !u.HasAll([]string{PermUsersRead, PermUsersWrite}) {
		t.Fatal("expected full match to pass")
	}
	if u.HasAll([]string{PermUsersRead, PermBillingRead}) {
		t.Fatal("partial match must fail")
	}
}

func TestPermissionsForRoles(t *testing.T) {
	admin := PermissionsForRoles([]string{RoleAdmin})
	if !slices.Contains(admin, PermBillingRead) {
		t.Fatal("admin grant should include billing.read")
	}

	user := PermissionsForRoles([]string{RoleUser})
	if slices.Contains(user, PermBillingRead) {
		t.Fatal("user grant should not include billing.read")
	}
	if !slices.Contains(user, PermUsersRead) {
		t.Fatal("user grant should include users.read")
	}

	both := PermissionsForRoles([]string{RoleUser, RoleAdmin})
	seen := map[string]int{}
	for _, p := range both {
		seen[p]++
	}
	for p, n := range seen {
		if n != 1 {
			t.Fatalf("permission %s duplicated %d times", p, n)
		}
	}
}
