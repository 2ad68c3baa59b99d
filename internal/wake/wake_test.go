package wake

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLock struct {
	mu       sync.Mutex
	held     bool
	acquires int
	releases int
	err      error
}

func (f *fakeLock) Acquire() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquires++
	if f.err != nil {
		return f.err
	}
	f.held = true
	return nil
}

func (f *fakeLock) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	f.held = false
}

func (f *fakeLock) Held() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held
}

// revoke simulates the platform dropping the lock out-of-band.
func (f *fakeLock) revoke() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = false
}

func (f *fakeLock) acquireCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquires
}

func testController(lock ScreenLock, heartbeat time.Duration) *Controller {
	return NewController(Config{
		Lock:      lock,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Heartbeat: heartbeat,
	})
}

func TestEnableAcquiresDisableReleases(t *testing.T) {
	lock := &fakeLock{}
	c := testController(lock, time.Hour)

	c.SetEnabled(true)
	assert.True(t, lock.Held())
	assert.True(t, c.Enabled())

	c.SetEnabled(false)
	assert.False(t, lock.Held())
	assert.False(t, c.Enabled())
	assert.Equal(t, 1, lock.releases)
}

func TestSetEnabledIsIdempotent(t *testing.T) {
	lock := &fakeLock{}
	c := testController(lock, time.Hour)
	defer c.Close()

	c.SetEnabled(true)
	c.SetEnabled(true)
	assert.Equal(t, 1, lock.acquireCount())

	c.SetEnabled(false)
	c.SetEnabled(false)
	assert.Equal(t, 1, lock.releases)
}

func TestHeartbeatReacquiresRevokedLock(t *testing.T) {
	lock := &fakeLock{}
	c := testController(lock, 5*time.Millisecond)
	defer c.Close()

	c.SetEnabled(true)
	require.True(t, lock.Held())

	lock.revoke()

	assert.Eventually(t, func() bool {
		return lock.Held()
	}, time.Second, time.Millisecond, "heartbeat must re-request a revoked lock")
}

func TestHeartbeatStopsOnDisable(t *testing.T) {
	lock := &fakeLock{}
	c := testController(lock, 5*time.Millisecond)

	c.SetEnabled(true)
	c.SetEnabled(false)

	lock.revoke()
	before := lock.acquireCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, lock.acquireCount(), "no re-acquire after disable")
}

func TestOnVisibleReacquires(t *testing.T) {
	lock := &fakeLock{}
	c := testController(lock, time.Hour)
	defer c.Close()

	c.SetEnabled(true)
	lock.revoke()

	c.OnVisible()
	assert.True(t, lock.Held())
}

func TestOnVisibleNoopWhileDisabled(t *testing.T) {
	lock := &fakeLock{}
	c := testController(lock, time.Hour)

	c.OnVisible()
	assert.Zero(t, lock.acquireCount())
}

func TestAcquireFailureIsTolerated(t *testing.T) {
	lock := &fakeLock{err: errors.New("unsupported")}
	c := testController(lock, time.Hour)
	defer c.Close()

	c.SetEnabled(true)
	assert.True(t, c.Enabled(), "failed acquire keeps the controller enabled for retries")
	assert.False(t, lock.Held())
}
