package authz

// Roles known to the console.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

// Permission keys gating console routes and directory operations.
const (
	PermUsersRead        = "users.read"
	PermUsersWrite       = "users.write"
	PermSettingsRead     = "settings.read"
	PermSettingsWrite    = "settings.write"
	PermReportsRead      = "reports.read"
	PermAuditRead        = "audit.read"
	PermTeamsRead        = "teams.read"
	PermRolesRead        = "roles.read"
	PermBillingRead      = "billing.read"
	PermIntegrationsRead = "integrations.read"
	PermSupportRead      = "support.read"
)

// AdminPermissions is the full grant issued to the admin role.
var AdminPermissions = []string{
	PermUsersRead,
	PermUsersWrite,
	PermSettingsRead,
	PermSettingsWrite,
	PermReportsRead,
	PermAuditRead,
	PermTeamsRead,
	PermRolesRead,
	PermBillingRead,
	PermIntegrationsRead,
	PermSupportRead,
}

// UserPermissions is the limited grant issued to the user role. Notably it
// lacks billing.read, which the permission guard scenarios rely on.
var UserPermissions = []string{
	PermUsersRead,
	PermSettingsRead,
	PermReportsRead,
	PermSupportRead,
}

// PermissionsForRoles resolves the union of grants for a role set.
func PermissionsForRoles(roles []string) []string {
	set := make(map[string]struct{})
	var out []string
	add := func(perms []string) {
		for _, p := range perms {
			if _, ok := set[p]; ok {
				continue
			}
			set[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, role := range roles {
		switch role {
		case RoleAdmin:
			add(AdminPermissions)
		case RoleManager, RoleUser:
			add(UserPermissions)
		}
	}
	return out
}
