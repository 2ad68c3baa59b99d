package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActionGuard(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := NewActionGuard(5 * time.Second)
	g.now = func() time.Time { return clock }

	assert.False(t, g.Active(), "fresh guard must be inactive")

	g.Set()
	assert.True(t, g.Active())

	clock = clock.Add(3 * time.Second)
	assert.True(t, g.Active(), "guard active inside the TTL window")

	clock = clock.Add(3 * time.Second)
	assert.False(t, g.Active(), "guard auto-expires after the TTL")
}

func TestActionGuardClear(t *testing.T) {
	g := NewActionGuard(time.Minute)
	g.Set()
	assert.True(t, g.Active())

	g.Clear()
	assert.False(t, g.Active())
}

func TestActionGuardSetRestartsWindow(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := NewActionGuard(5 * time.Second)
	g.now = func() time.Time { return clock }

	g.Set()
	clock = clock.Add(4 * time.Second)
	g.Set()
	clock = clock.Add(4 * time.Second)
	assert.True(t, g.Active(), "second Set restarts the expiry window")
}

func TestContextLoaded(t *testing.T) {
	c := NewContext(0)
	assert.False(t, c.Loaded())
	c.MarkLoaded()
	assert.True(t, c.Loaded())
	assert.NotNil(t, c.Guard)
}
