package engine

import (
	"sync"
	"time"
)

// tickInterval is the clock resolution. Second granularity is acceptable;
// the deadline, not the tick count, is authoritative.
const tickInterval = time.Second

// Clock is the single countdown bound to a session's active phase.
//
// Remaining time is always computed from the deadline, so a delayed tick
// (host timer throttling, scheduler stalls) makes the expiry fire late but
// never early. The expiry callback fires at most once, and never after
// Stop — a stopped clock cannot produce a zombie auto-submit.
type Clock struct {
	deadline time.Time
	onExpire func()
	now      func() time.Time

	mu      sync.Mutex
	stopped bool
	expired bool
	stopCh  chan struct{}
}

// NewClock creates a clock that expires after d and then invokes onExpire.
// The clock does not run until Start is called.
func NewClock(d time.Duration, onExpire func()) *Clock {
	c := &Clock{
		onExpire: onExpire,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	c.deadline = c.now().Add(d)
	return c
}

// Start runs the tick loop in its own goroutine.
func (c *Clock) Start() {
	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
				if c.Tick() {
					return
				}
			}
		}
	}()
}

// Tick evaluates the deadline once and returns true when the loop should
// exit. Exposed so delayed or externally-driven ticks behave identically to
// the internal loop.
func (c *Clock) Tick() bool {
	c.mu.Lock()
	if c.stopped || c.expired {
		c.mu.Unlock()
		return true
	}
	if c.now().Before(c.deadline) {
		c.mu.Unlock()
		return false
	}
	c.expired = true
	c.stopped = true
	close(c.stopCh)
	cb := c.onExpire
	c.mu.Unlock()

	// Invoked outside the lock: the callback re-enters the session engine.
	if cb != nil {
		cb()
	}
	return true
}

// Remaining returns the whole seconds left, never negative.
func (c *Clock) Remaining() int {
	left := c.deadline.Sub(c.now())
	if left <= 0 {
		return 0
	}
	// Round up so the countdown reaches 0 exactly at the deadline.
	return int((left + tickInterval - 1) / tickInterval)
}

// Expired reports whether the expiry callback has fired.
func (c *Clock) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// Stop halts the clock without firing expiry. Safe to call repeatedly and
// after expiry; once stopped, a pending tick can no longer fire.
func (c *Clock) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		close(c.stopCh)
	}
	c.mu.Unlock()
}
