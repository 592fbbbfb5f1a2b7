// Package notify fan-outs user-facing notifications (the console's toasts)
// to all active subscribers.
package notify

import (
	"context"
	"sync"
	"time"
)

// Level classifies a notification for presentation.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a single user-facing message.
type Notification struct {
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Center fan-outs notifications to all active subscribers.
type Center struct {
	mu   sync.RWMutex
	subs map[int]chan Notification
	next int
}

// New initialises an empty notification center.
func New() *Center {
	return &Center{subs: make(map[int]chan Notification)}
}

// Subscribe registers a subscriber and returns a channel receiving every
// published notification plus a cancel function. The channel is closed when
// ctx ends or cancel is called, whichever happens first. Cancel is safe to
// call more than once.
func (c *Center) Subscribe(ctx context.Context) (<-chan Notification, func()) {
	ch := make(chan Notification, 16)

	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			close(ch)
			c.mu.Unlock()
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel
}

// Publish fan-outs the notification to all subscribers.
func (c *Center) Publish(n Notification) {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.subs {
		select {
		case ch <- n:
		default:
			// Drop when a subscriber is slow to avoid blocking.
		}
	}
}

// Error publishes an error-level notification.
func (c *Center) Error(title, message string) {
	c.Publish(Notification{Level: LevelError, Title: title, Message: message})
}

// Success publishes a success-level notification.
func (c *Center) Success(title, message string) {
	c.Publish(Notification{Level: LevelSuccess, Title: title, Message: message})
}
