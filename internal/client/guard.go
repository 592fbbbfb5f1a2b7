package client

import (
	"context"
	"net/url"
)

// Route declares a guarded destination: its path and the permissions it
// requires. An empty permission list means any authenticated user may enter.
type Route struct {
	Path        string
	Permissions []string
}

// Decision is a guard verdict: proceed, or redirect elsewhere.
type Decision struct {
	Allowed    bool
	RedirectTo string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func redirect(to string) Decision {
	return Decision{RedirectTo: to}
}

// Guard gates a navigation attempt.
type Guard func(ctx context.Context, route Route) Decision

// AuthGuard waits for session bootstrap, then admits authenticated
// navigation. Anyone else is sent to login with the attempted path as
// returnUrl so a successful sign-in can resume it.
func AuthGuard(m *Manager) Guard {
	return func(ctx context.Context, route Route) Decision {
		_ = m.Init(ctx)
		if m.IsAuthenticated() {
			return allow()
		}
		q := url.Values{}
		q.Set("returnUrl", route.Path)
		return redirect(LoginPath + "?" + q.Encode())
	}
}

// PermissionGuard admits navigation only when every declared permission is
// held. A route declaring none is always allowed without consulting the
// session. Denials are terminal: the redirect carries no return URL.
func PermissionGuard(m *Manager) Guard {
	return func(ctx context.Context, route Route) Decision {
		if len(route.Permissions) == 0 {
			return allow()
		}
		if m.CurrentUser().HasAll(route.Permissions) {
			return allow()
		}
		return redirect(ForbiddenPath)
	}
}

// Evaluate runs guards in order and returns the first non-allowing verdict.
func Evaluate(ctx context.Context, route Route, guards ...Guard) Decision {
	for _, g := range guards {
		d := g(ctx, route)
		if !d.Allowed {
			return d
		}
	}
	return allow()
}
