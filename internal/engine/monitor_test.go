package engine

import (
	"testing"

	"github.com/cuetprep/examd/internal/model"
)

func TestMonitorDropsSignalsWhileDetached(t *testing.T) {
	m := NewMonitor()

	if _, ok := m.Report(model.ViolationTabSwitch); ok {
		t.Fatal("detached monitor must drop signals")
	}
	if m.ViolationCount() != 0 {
		t.Fatal("dropped signal must not be logged")
	}

	m.Attach()
	if _, ok := m.Report(model.ViolationTabSwitch); !ok {
		t.Fatal("attached monitor must record signals")
	}

	m.Detach()
	if _, ok := m.Report(model.ViolationWindowBlur); ok {
		t.Fatal("signal after detach must be dropped")
	}
	if m.ViolationCount() != 1 {
		t.Fatalf("violation count = %d, want 1", m.ViolationCount())
	}
}

func TestMonitorAppendOnlyLog(t *testing.T) {
	m := NewMonitor()
	m.Attach()

	kinds := []model.ViolationKind{
		model.ViolationTabSwitch,
		model.ViolationWindowBlur,
		model.ViolationCopyAttempt,
		model.ViolationRightClick,
		model.ViolationKeyboardBlock,
		model.ViolationTabSwitch,
	}
	for _, k := range kinds {
		if _, ok := m.Report(k); !ok {
			t.Fatalf("report %s failed", k)
		}
	}

	vs := m.Violations()
	if len(vs) != len(kinds) {
		t.Fatalf("log length = %d, want %d", len(vs), len(kinds))
	}
	for i, v := range vs {
		if v.Kind != kinds[i] {
			t.Fatalf("log[%d] = %s, want %s (append order)", i, v.Kind, kinds[i])
		}
		if v.Description == "" {
			t.Fatalf("log[%d] has empty description", i)
		}
	}

	// The returned slice is a copy; mutating it must not touch the log.
	vs[0].Kind = model.ViolationCopyAttempt
	if m.Violations()[0].Kind != model.ViolationTabSwitch {
		t.Fatal("Violations must return a copy")
	}
}

func TestMonitorTabSwitchCounter(t *testing.T) {
	m := NewMonitor()
	m.Attach()

	m.Report(model.ViolationTabSwitch)
	m.Report(model.ViolationWindowBlur)
	m.Report(model.ViolationTabSwitch)
	m.Report(model.ViolationCopyAttempt)

	if got := m.TabSwitchCount(); got != 2 {
		t.Fatalf("tab switch count = %d, want 2", got)
	}
	if got := m.ViolationCount(); got != 4 {
		t.Fatalf("violation count = %d, want 4", got)
	}
}

func TestMonitorSingleFullscreenReentry(t *testing.T) {
	m := NewMonitor()
	m.Attach()

	adv, ok := m.Report(model.ViolationFullscreenExit)
	if !ok || !adv.RequestReentry {
		t.Fatal("first fullscreen exit should request re-entry")
	}

	// Subsequent exits must not request again — no loops, no spam.
	for i := 0; i < 3; i++ {
		adv, ok = m.Report(model.ViolationFullscreenExit)
		if !ok {
			t.Fatal("report failed")
		}
		if adv.RequestReentry {
			t.Fatal("re-entry must be requested at most once")
		}
	}
}

func TestMonitorAdvisoryIsTransient(t *testing.T) {
	m := NewMonitor()
	m.Attach()

	adv, _ := m.Report(model.ViolationCopyAttempt)
	if adv.VisibleForMillis != AdvisoryTTL.Milliseconds() {
		t.Fatalf("advisory TTL = %dms, want %dms", adv.VisibleForMillis, AdvisoryTTL.Milliseconds())
	}
	if adv.Message == "" {
		t.Fatal("advisory must carry the human-readable description")
	}
}

func TestMonitorAcceptsPluggableKinds(t *testing.T) {
	m := NewMonitor()
	m.Attach()

	// A camera-proctoring capability reports its own kind; the monitor
	// records it without hard-wired knowledge.
	adv, ok := m.Report(model.ViolationKind("camera_absent"))
	if !ok {
		t.Fatal("unknown kind must still be recorded")
	}
	if adv.Message == "" {
		t.Fatal("unknown kind still gets a generic advisory")
	}
}
