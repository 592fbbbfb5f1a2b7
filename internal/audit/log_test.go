package audit

import (
	"context"
	"testing"
)

func TestWithRequestID(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Fatalf("empty context yielded %q", got)
	}

	ctx = WithRequestID(ctx, "req-123")
	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Fatalf("request id = %q", got)
	}

	// Blank ids are not attached.
	ctx2 := WithRequestID(context.Background(), "   ")
	if got := RequestIDFromContext(ctx2); got != "" {
		t.Fatalf("blank id attached: %q", got)
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
	if err := LogEvent(context.Background(), "auth.login.succeeded", map[string]any{"email": "a@b"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
}
