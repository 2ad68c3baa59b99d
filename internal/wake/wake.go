package wake

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultHeartbeat is the fallback re-acquire interval used when the platform
// releases the lock out-of-band.
const DefaultHeartbeat = 15 * time.Second

// ScreenLock is the platform capability keeping the display on. Held reports
// whether the lock is still in effect; platforms may revoke it silently.
type ScreenLock interface {
	Acquire() error
	Release()
	Held() bool
}

// NoopLock satisfies ScreenLock on platforms without display control.
type NoopLock struct{}

func (NoopLock) Acquire() error { return nil }
func (NoopLock) Release()       {}
func (NoopLock) Held() bool     { return true }

// Config wires a Controller.
type Config struct {
	Lock      ScreenLock
	Logger    *slog.Logger
	Heartbeat time.Duration
}

// Controller keeps the display awake while a delivery is in progress. While
// enabled it holds the platform lock, re-checks it on a heartbeat, and
// re-acquires it when the app regains visibility. Disabling releases the lock
// and stops the heartbeat.
type Controller struct {
	lock      ScreenLock
	logger    *slog.Logger
	heartbeat time.Duration

	mu      sync.Mutex
	enabled bool
	stop    chan struct{}
}

func NewController(cfg Config) *Controller {
	hb := cfg.Heartbeat
	if hb <= 0 {
		hb = DefaultHeartbeat
	}
	lock := cfg.Lock
	if lock == nil {
		lock = NoopLock{}
	}

	return &Controller{
		lock:      lock,
		logger:    cfg.Logger,
		heartbeat: hb,
	}
}

// SetEnabled turns the controller on or off. Both directions are idempotent.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enabled == c.enabled {
		return
	}
	c.enabled = enabled

	if !enabled {
		close(c.stop)
		c.stop = nil
		c.lock.Release()
		c.logger.Debug("Screen wake disabled")
		return
	}

	c.acquire()
	c.stop = make(chan struct{})
	go c.heartbeatLoop(c.stop)
	c.logger.Debug("Screen wake enabled")
}

// OnVisible re-acquires the lock when the app returns to the foreground; the
// platform drops the lock while backgrounded.
func (c *Controller) OnVisible() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return
	}
	c.acquire()
}

// Enabled reports whether the controller is currently holding the display.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// heartbeatLoop re-checks the lock until stop closes. A lock the platform
// silently revoked is simply requested again.
func (c *Controller) heartbeatLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.enabled && !c.lock.Held() {
				c.acquire()
			}
			c.mu.Unlock()
		}
	}
}

// acquire requests the lock. Failure is logged; the heartbeat retries.
// Caller holds c.mu.
func (c *Controller) acquire() {
	if err := c.lock.Acquire(); err != nil {
		c.logger.Warn("Screen wake lock unavailable", slog.Any("error", err))
	}
}

// Close releases everything. Equivalent to SetEnabled(false).
func (c *Controller) Close() {
	c.SetEnabled(false)
}
