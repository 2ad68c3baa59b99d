// Package session carries the per-session dispatch state shared between the
// queue manager and the alert coordinator: the action-in-flight reentrancy
// guard and the loaded-once flag.
package session

import (
	"sync"
	"time"
)

// DefaultGuardTTL is the auto-expiry window for the reentrancy guard. A step
// that fails to clear the guard cannot suppress alerts past this window.
const DefaultGuardTTL = 5 * time.Second

// ActionGuard marks a courier-initiated action as in flight so other
// components do not react to state changes the courier caused themselves.
// The guard expires on its own after the TTL.
type ActionGuard struct {
	mu    sync.Mutex
	until time.Time
	ttl   time.Duration
	now   func() time.Time
}

// NewActionGuard creates a guard with the given TTL; ttl <= 0 uses the default.
func NewActionGuard(ttl time.Duration) *ActionGuard {
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	return &ActionGuard{ttl: ttl, now: time.Now}
}

// Set marks an action as in flight, restarting the expiry window.
func (g *ActionGuard) Set() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.until = g.now().Add(g.ttl)
}

// Clear releases the guard immediately.
func (g *ActionGuard) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.until = time.Time{}
}

// Active reports whether an action is still considered in flight.
func (g *ActionGuard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.now().Before(g.until)
}

// Context is the state object threaded through the queue and alert components
// for one courier session.
type Context struct {
	Guard *ActionGuard

	mu     sync.Mutex
	loaded bool
}

// NewContext creates a session context with a fresh guard.
func NewContext(guardTTL time.Duration) *Context {
	return &Context{Guard: NewActionGuard(guardTTL)}
}

// MarkLoaded records that an initial queue load has completed once.
func (c *Context) MarkLoaded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = true
}

// Loaded reports whether an initial queue load has completed.
func (c *Context) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}
