package notify

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, unsubA := c.Subscribe(ctx)
	defer unsubA()
	b, unsubB := c.Subscribe(ctx)
	defer unsubB()

	c.Error("Sign in failed", "Invalid credentials")

	for name, ch := range map[string]<-chan Notification{"a": a, "b": b} {
		select {
		case n := <-ch:
			if n.Level != LevelError || n.Title != "Sign in failed" {
				t.Fatalf("subscriber %s got %+v", name, n)
			}
			if n.At.IsZero() {
				t.Fatalf("subscriber %s notification missing timestamp", name)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s did not receive notification", name)
		}
	}
}

func TestSubscribeEndsWithContext(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := c.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, unsub := c.Subscribe(ctx)
	unsub()
	unsub() // second call is a no-op

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}

	// Publishing to a removed subscriber must not panic.
	c.Success("User created", "ok")
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, unsub := c.Subscribe(ctx)
	defer unsub()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			c.Success("User created", "ok")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}
