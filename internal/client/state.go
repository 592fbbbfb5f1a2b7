// Package client is the console's session core: the session manager, the
// authenticated transport chain, the route guards, and the in-process mock
// backend used in dev mode.
package client

import (
	"sync"

	"adminconsole.org/internal/authz"
)

// Strategy selects where credential material lives. Fixed per deployment at
// startup, never per-request.
type Strategy string

const (
	// StrategyCookie keeps the session server-side in HttpOnly cookies; the
	// client holds only the user projection.
	StrategyCookie Strategy = "cookie"
	// StrategyToken keeps the credential pair client-side and attaches the
	// access token as a bearer header.
	StrategyToken Strategy = "token"
)

// Snapshot is a read-only view of the session state published to
// subscribers. Fields are copies; mutating them has no effect.
type Snapshot struct {
	User   *authz.User
	Tokens *authz.TokenPair
}

// stateCell is the single owned, mutable session unit. Only the Manager
// writes it; everyone else reads snapshots.
type stateCell struct {
	strategy Strategy

	mu     sync.RWMutex
	user   *authz.User
	tokens *authz.TokenPair
	subs   map[int]chan Snapshot
	next   int
}

func newStateCell(strategy Strategy) *stateCell {
	return &stateCell{
		strategy: strategy,
		subs:     make(map[int]chan Snapshot),
	}
}

func (c *stateCell) snapshotLocked() Snapshot {
	var s Snapshot
	if c.user != nil {
		u := *c.user
		s.User = &u
	}
	if c.tokens != nil {
		t := *c.tokens
		s.Tokens = &t
	}
	return s
}

func (c *stateCell) snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// set replaces user and tokens atomically and publishes the new snapshot.
func (c *stateCell) set(user *authz.User, tokens *authz.TokenPair) {
	c.mu.Lock()
	c.user = user
	c.tokens = tokens
	snap := c.snapshotLocked()
	subs := make([]chan Snapshot, 0, len(c.subs))
	for _, ch := range c.subs {
		subs = append(subs, ch)
	}
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
			// Slow subscriber, drop rather than block the session core.
		}
	}
}

func (c *stateCell) clear() {
	c.set(nil, nil)
}

// subscribe registers a change listener. The returned cancel func must be
// called when the listener goes away.
func (c *stateCell) subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)
	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = ch
	c.mu.Unlock()
	cancel := func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
	return ch, cancel
}

// authenticated is strategy-dependent: cookie mode means a user is present,
// token mode means an access token is held.
func (c *stateCell) authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.strategy == StrategyToken {
		return c.tokens != nil && c.tokens.AccessToken != ""
	}
	return c.user != nil
}

func (c *stateCell) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tokens == nil {
		return ""
	}
	return c.tokens.AccessToken
}

func (c *stateCell) refreshToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tokens == nil {
		return ""
	}
	return c.tokens.RefreshToken
}

func (c *stateCell) currentUser() *authz.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}
