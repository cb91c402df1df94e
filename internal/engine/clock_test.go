package engine

import (
	"testing"
	"time"
)

// fakeNow returns a controllable time source starting at a fixed instant.
func fakeNow(start time.Time) (func() time.Time, func(d time.Duration)) {
	current := start
	return func() time.Time { return current },
		func(d time.Duration) { current = current.Add(d) }
}

func TestClockDoesNotExpireEarly(t *testing.T) {
	fired := 0
	c := NewClock(10*time.Second, func() { fired++ })
	now, advance := fakeNow(time.Now())
	c.now = now
	c.deadline = now().Add(10 * time.Second)

	advance(9 * time.Second)
	if c.Tick() {
		t.Fatal("clock expired before the deadline")
	}
	if fired != 0 {
		t.Fatal("callback fired early")
	}
	if got := c.Remaining(); got != 1 {
		t.Fatalf("remaining = %d, want 1", got)
	}
}

func TestClockExpiresLateExactlyOnce(t *testing.T) {
	fired := 0
	c := NewClock(10*time.Second, func() { fired++ })
	now, advance := fakeNow(time.Now())
	c.now = now
	c.deadline = now().Add(10 * time.Second)

	// A silently delayed timer delivers the tick well past the deadline.
	advance(25 * time.Second)
	if !c.Tick() {
		t.Fatal("clock should have expired")
	}
	// Re-renders and re-subscriptions deliver more ticks.
	c.Tick()
	c.Tick()

	if fired != 1 {
		t.Fatalf("expiry fired %d times, want 1", fired)
	}
	if got := c.Remaining(); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}
	if !c.Expired() {
		t.Fatal("Expired() should report true")
	}
}

func TestClockStopPreventsExpiry(t *testing.T) {
	fired := 0
	c := NewClock(time.Second, func() { fired++ })
	now, advance := fakeNow(time.Now())
	c.now = now
	c.deadline = now().Add(time.Second)

	c.Stop()
	advance(time.Hour)
	c.Tick()

	if fired != 0 {
		t.Fatal("a stopped clock must not fire expiry")
	}
	// Stop is idempotent.
	c.Stop()
}

func TestClockRemainingRoundsUp(t *testing.T) {
	c := NewClock(10*time.Second, nil)
	now, advance := fakeNow(time.Now())
	c.now = now
	c.deadline = now().Add(10 * time.Second)

	advance(9500 * time.Millisecond)
	if got := c.Remaining(); got != 1 {
		t.Fatalf("remaining = %d, want 1 (round up)", got)
	}
	advance(500 * time.Millisecond)
	if got := c.Remaining(); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}
}
