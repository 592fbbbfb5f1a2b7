package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                        "/",
		"/metrics":                "/metrics",
		"/api/auth/login":         "/api/auth/login",
		"/api/users":              "/api/users",
		"/api/users/u_1":          "/api/users/:id",
		"/api/users/u_1?x=1":      "/api/users/:id",
		"/api/users/u_1/sessions": "/api/users/u_1/sessions",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != LevelDebug {
		t.Fatal("debug not parsed")
	}
	if ParseLevel("WARN") != LevelWarn {
		t.Fatal("warn not parsed")
	}
	if ParseLevel("nonsense") != LevelInfo {
		t.Fatal("unknown level should fall back to info")
	}
}
