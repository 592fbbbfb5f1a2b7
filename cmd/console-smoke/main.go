// Command console-smoke drives the session core end to end: bootstrap,
// guarded navigation, login, directory listing, refresh, and logout. In mock
// mode it is fully self-contained; pointed at a running consoled it
// exercises the cookie strategy instead.
package main

import (
	"context"
	"log"
	"strings"
	"time"

	"adminconsole.org/internal/authz"
	"adminconsole.org/internal/client"
	"adminconsole.org/internal/config"
	"adminconsole.org/internal/directory"
	"adminconsole.org/internal/notify"
	"adminconsole.org/internal/obs"
)

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	obs.SetMinLevel(obs.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	notes := notify.New()
	toasts, unsubscribe := notes.Subscribe(ctx)
	defer unsubscribe()
	go func() {
		for n := range toasts {
			log.Printf("toast [%s] %s: %s", n.Level, n.Title, n.Message)
		}
	}()

	// Path-only base URLs (the server-side default) get a placeholder host;
	// in mock mode requests never leave the process anyway.
	baseURL := cfg.APIBaseURL
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://console.local" + baseURL
	}

	opts := client.Options{
		BaseURL:  baseURL,
		Notifier: notes,
		Navigate: func(path string) { log.Printf("navigate -> %s", path) },
		Timeout:  cfg.RequestTimeout(),
	}
	if cfg.UsesCookieAuth() {
		opts.Strategy = client.StrategyCookie
	} else {
		opts.Strategy = client.StrategyToken
		opts.Transport = client.NewMockBackend(250 * time.Millisecond)
		if cfg.CanPersistSession() {
			opts.Store = client.NewFileStore(cfg.SessionFile)
		}
	}

	m, err := client.NewManager(opts)
	if err != nil {
		log.Fatalf("manager: %v", err)
	}

	if err := m.Init(ctx); err != nil {
		log.Fatalf("init: %v", err)
	}
	log.Printf("bootstrap done, authenticated=%v", m.IsAuthenticated())

	usersRoute := client.Route{Path: "/users", Permissions: []string{authz.PermUsersRead}}
	billingRoute := client.Route{Path: "/billing", Permissions: []string{authz.PermBillingRead}}
	guards := []client.Guard{client.AuthGuard(m), client.PermissionGuard(m)}

	if d := client.Evaluate(ctx, usersRoute, guards...); d.Allowed {
		log.Fatalf("guards must block navigation before login")
	} else {
		log.Printf("pre-login navigation to %s redirected to %s", usersRoute.Path, d.RedirectTo)
	}

	if !m.Login(ctx, directory.SeedUserEmail, directory.SeedUserPassword) {
		log.Fatalf("login as %s failed", directory.SeedUserEmail)
	}
	log.Printf("logged in as %s", directory.SeedUserEmail)

	if d := client.Evaluate(ctx, billingRoute, guards...); d.Allowed {
		log.Fatalf("limited user must not reach billing")
	} else {
		log.Printf("billing navigation redirected to %s", d.RedirectTo)
	}

	m.Logout(ctx)

	if !m.Login(ctx, directory.SeedAdminEmail, directory.SeedAdminPassword) {
		log.Fatalf("login as %s failed", directory.SeedAdminEmail)
	}
	log.Printf("logged in as %s", directory.SeedAdminEmail)

	if d := client.Evaluate(ctx, billingRoute, guards...); !d.Allowed {
		log.Fatalf("admin blocked from billing: redirect %s", d.RedirectTo)
	}

	users, err := m.API().ListUsers(ctx)
	if err != nil {
		log.Fatalf("list users: %v", err)
	}
	for _, u := range users {
		log.Printf("user %s %s <%s> active=%v", u.ID, u.DisplayName(), u.Email, u.IsActive)
	}

	switch m.Strategy() {
	case client.StrategyToken:
		if tokens := m.RefreshTokens(ctx); tokens == nil {
			log.Fatalf("token refresh failed")
		}
		log.Printf("token pair rotated")
	case client.StrategyCookie:
		if !m.RefreshCookieSession(ctx) {
			log.Fatalf("cookie refresh failed")
		}
		log.Printf("cookie session refreshed")
	}

	me, err := m.API().Me(ctx)
	if err != nil {
		log.Fatalf("whoami after refresh: %v", err)
	}
	log.Printf("still signed in as %s (%v)", me.Email, me.Roles)

	m.Logout(ctx)
	if m.IsAuthenticated() {
		log.Fatalf("logout left an authenticated session")
	}
	log.Printf("smoke finished: %d users listed, final state clean", len(users))
}
