package engine

import (
	"sync"
	"time"

	"github.com/cuetprep/examd/internal/model"
)

// AdvisoryTTL is how long a violation advisory stays visible on the client.
const AdvisoryTTL = 3 * time.Second

// Advisory is the transient, purely informational banner produced for every
// recorded violation. Advisories never block input.
type Advisory struct {
	Kind             model.ViolationKind `json:"kind"`
	Message          string              `json:"message"`
	VisibleForMillis int64               `json:"visible_for_millis"`
	// RequestReentry asks the client to attempt one fullscreen re-entry.
	// Set at most once per session: re-entry needs a user gesture in most
	// environments and the monitor must not spam requests.
	RequestReentry bool `json:"request_reentry,omitempty"`
}

// Monitor is the integrity observer for one session. It is wired (attached)
// only while the session is in the active phase; attach and detach are
// symmetric operations invoked exactly on phase entry and exit. A signal
// arriving while detached is dropped, which makes a leaked reporter after
// submission harmless.
//
// The violation log is append-only. No count, individually or aggregate,
// ever terminates the session; only the clock and explicit submission do.
type Monitor struct {
	mu               sync.Mutex
	attached         bool
	violations       []model.Violation
	tabSwitches      int
	reentryRequested bool
	now              func() time.Time
}

// NewMonitor creates a detached monitor.
func NewMonitor() *Monitor {
	return &Monitor{now: time.Now}
}

// Attach starts accepting signals. Idempotent.
func (m *Monitor) Attach() {
	m.mu.Lock()
	m.attached = true
	m.mu.Unlock()
}

// Detach stops accepting signals. Idempotent. Must be called the instant
// the phase leaves active.
func (m *Monitor) Detach() {
	m.mu.Lock()
	m.attached = false
	m.mu.Unlock()
}

// Attached reports whether the monitor currently accepts signals.
func (m *Monitor) Attached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attached
}

// Report records a violation and returns the advisory to surface. Returns
// ok=false when the monitor is detached and the signal was dropped.
func (m *Monitor) Report(kind model.ViolationKind) (Advisory, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.attached {
		return Advisory{}, false
	}

	desc := model.DescribeViolation(kind)
	m.violations = append(m.violations, model.Violation{
		Kind:        kind,
		Timestamp:   m.now(),
		Description: desc,
	})

	adv := Advisory{
		Kind:             kind,
		Message:          desc,
		VisibleForMillis: AdvisoryTTL.Milliseconds(),
	}

	switch kind {
	case model.ViolationTabSwitch:
		// Tab switches feed both the warning banner and the final audit,
		// so they get a dedicated counter.
		m.tabSwitches++
	case model.ViolationFullscreenExit:
		if !m.reentryRequested {
			m.reentryRequested = true
			adv.RequestReentry = true
		}
	}

	return adv, true
}

// Violations returns a copy of the append-only log.
func (m *Monitor) Violations() []model.Violation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Violation, len(m.violations))
	copy(out, m.violations)
	return out
}

// ViolationCount returns the total number of recorded violations.
func (m *Monitor) ViolationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.violations)
}

// TabSwitchCount returns the dedicated tab-switch counter.
func (m *Monitor) TabSwitchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tabSwitches
}
