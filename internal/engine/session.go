package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuetprep/examd/internal/model"
)

// Session engine errors.
var (
	ErrNotActive        = errors.New("session is not in the active phase")
	ErrAlreadyActive    = errors.New("session already left the instructions phase")
	ErrSubmitFromIntro  = errors.New("cannot submit before the active phase")
	ErrNoTestDefinition = errors.New("session has no test definition")
)

// Session is the engine governing one candidate's timed attempt at one
// test. It owns the answer ledger, the integrity monitor and the session
// clock exclusively; every entry point serializes on one mutex, so handler
// invocations interleave without true parallelism, whatever order the host
// delivers them in.
//
// Phase transitions are one-directional:
// INSTRUCTIONS → ACTIVE → SUBMITTING → TERMINAL.
type Session struct {
	ID          uuid.UUID
	CandidateID int

	mu           sync.Mutex
	def          *model.TestDefinition
	ledger       *Ledger
	monitor      *Monitor
	clock        *Clock
	display      DisplayCapability
	phase        model.Phase
	currentIndex int
	startedAt    time.Time
	result       *model.ResultRecord
	embargo      time.Duration

	// onAutoSubmit runs after a clock-driven submission completes, outside
	// the session lock. The service uses it to persist the result.
	onAutoSubmit func(*Session, *model.ResultRecord)

	now func() time.Time
}

// NewSession creates a session in the instructions phase. The definition is
// loaded once and never mutated.
func NewSession(def *model.TestDefinition, candidateID int, embargo time.Duration) (*Session, error) {
	if def == nil || len(def.Questions) == 0 {
		return nil, ErrNoTestDefinition
	}
	return &Session{
		ID:          uuid.New(),
		CandidateID: candidateID,
		def:         def,
		ledger:      NewLedger(def.Questions),
		monitor:     NewMonitor(),
		phase:       model.PhaseInstructions,
		embargo:     embargo,
		now:         time.Now,
	}, nil
}

// SetAutoSubmitHook registers the callback invoked after a timeout-driven
// submission. Must be called before BeginActive.
func (s *Session) SetAutoSubmitHook(fn func(*Session, *model.ResultRecord)) {
	s.mu.Lock()
	s.onAutoSubmit = fn
	s.mu.Unlock()
}

// BeginActive is the instructions/consent gate. It acquires the exclusive
// display capability, attaches the monitor, starts the clock and enters the
// active phase. Capability denial blocks entry and leaves the session in
// the instructions phase; the candidate retries with a fresh capability on
// an explicit action.
func (s *Session) BeginActive(ctx context.Context, display DisplayCapability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != model.PhaseInstructions {
		return ErrAlreadyActive
	}

	if display != nil {
		if err := display.Acquire(ctx); err != nil {
			return err
		}
	}
	s.display = display

	s.startedAt = s.now()
	s.monitor.Attach()
	s.clock = NewClock(time.Duration(s.def.DurationSeconds)*time.Second, s.autoSubmit)
	s.clock.Start()
	s.phase = model.PhaseActive
	return nil
}

// Select records an answer. Legal only in the active phase.
func (s *Session) Select(index, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != model.PhaseActive {
		return ErrNotActive
	}
	return s.ledger.Select(index, option)
}

// Clear removes an answer without resetting visited or marked state.
func (s *Session) Clear(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != model.PhaseActive {
		return ErrNotActive
	}
	return s.ledger.Clear(index)
}

// ToggleMark flips the review flag for a slot.
func (s *Session) ToggleMark(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != model.PhaseActive {
		return ErrNotActive
	}
	return s.ledger.ToggleMark(index)
}

// Navigate moves the current slot. The slot being left is marked visited;
// the destination is not, until the candidate moves away from it too.
func (s *Session) Navigate(to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != model.PhaseActive {
		return ErrNotActive
	}
	if to < 0 || to >= s.ledger.Len() {
		return fmt.Errorf("question index %d outside [0,%d): %w", to, s.ledger.Len(), ErrOutOfRange)
	}
	if to != s.currentIndex {
		_ = s.ledger.MarkVisited(s.currentIndex)
	}
	s.currentIndex = to
	return nil
}

// Signal feeds one environment signal to the integrity monitor. Signals
// outside the active phase are dropped (ok=false); they are advisory and
// never an error.
func (s *Session) Signal(kind model.ViolationKind) (Advisory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != model.PhaseActive {
		return Advisory{}, false
	}
	return s.monitor.Report(kind)
}

// View builds the read-only projection for rendering the palette and clock.
func (s *Session) View() model.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := model.SessionView{
		SessionID:      s.ID,
		TestID:         s.def.ID,
		Phase:          s.phase,
		CurrentIndex:   s.currentIndex,
		Records:        s.ledger.Snapshot(),
		Counts:         s.ledger.Counts(),
		ViolationCount: s.monitor.ViolationCount(),
		TabSwitchCount: s.monitor.TabSwitchCount(),
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		v.StartedAt = &started
	}
	if s.phase == model.PhaseActive && s.clock != nil {
		v.RemainingSeconds = s.clock.Remaining()
	}
	if s.result != nil {
		id := s.result.ID
		v.ResultID = &id
	}
	return v
}

// TestID returns the ID of the loaded test definition.
func (s *Session) TestID() uuid.UUID {
	return s.def.ID
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() model.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Result returns the computed result, or nil before submission.
func (s *Session) Result() *model.ResultRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Violations returns the audit trail recorded by the monitor.
func (s *Session) Violations() []model.Violation {
	return s.monitor.Violations()
}

// Submit ends the attempt and computes the result. Callable exactly once:
// a second call while submitting or terminal is a no-op returning the
// previously computed record, never recomputing it.
//
// Resource teardown (monitor detach, clock stop, display release) is
// unconditional; persistence is the caller's concern and may fail and be
// retried without ever touching the computed record.
func (s *Session) Submit(reason model.SubmitReason) (*model.ResultRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitLocked(reason)
}

func (s *Session) submitLocked(reason model.SubmitReason) (*model.ResultRecord, error) {
	if s.result != nil {
		return s.result, nil
	}
	switch s.phase {
	case model.PhaseInstructions:
		return nil, ErrSubmitFromIntro
	case model.PhaseActive:
		// Fall through to scoring.
	default:
		// SUBMITTING/TERMINAL with no result cannot happen: the result is
		// assigned in the same critical section that leaves ACTIVE.
		return s.result, nil
	}

	s.phase = model.PhaseSubmitting

	remaining := 0
	if s.clock != nil {
		remaining = s.clock.Remaining()
		if s.clock.Expired() {
			remaining = 0
		}
	}

	// Scoped teardown: these run regardless of what happens downstream.
	s.monitor.Detach()
	if s.clock != nil {
		s.clock.Stop()
	}
	if s.display != nil {
		s.display.Release()
	}

	s.result = s.score(reason, remaining)
	s.phase = model.PhaseTerminal
	return s.result, nil
}

// score applies the marking scheme over the ledger. Skipped questions award
// zero, correct answers award MarksCorrect, wrong answers award MarksWrong.
func (s *Session) score(reason model.SubmitReason, remainingSeconds int) *model.ResultRecord {
	now := s.now()
	rec := &model.ResultRecord{
		ID:               uuid.New(),
		SessionID:        s.ID,
		CandidateID:      s.CandidateID,
		TestID:           s.def.ID,
		TotalMarks:       s.def.TotalMarks(),
		TimeSpentSeconds: s.def.DurationSeconds - remainingSeconds,
		ViolationCount:   s.monitor.ViolationCount(),
		TabSwitchCount:   s.monitor.TabSwitchCount(),
		SubmitReason:     reason,
		SubmittedAt:      now,
		Status:           model.ResultStatusPending,
		AvailableAt:      now.Add(s.embargo),
	}

	records := s.ledger.Snapshot()
	rec.PerQuestion = make([]model.QuestionResult, len(records))
	for i, r := range records {
		q := s.def.Questions[i]
		qr := model.QuestionResult{
			QuestionID:     r.QuestionID,
			SelectedOption: r.SelectedOption,
			CorrectOption:  q.CorrectOption,
		}
		switch {
		case r.SelectedOption == nil:
			rec.SkippedCount++
		case *r.SelectedOption == q.CorrectOption:
			rec.CorrectCount++
			qr.IsCorrect = true
			qr.MarksAwarded = s.def.MarksCorrect
		default:
			rec.WrongCount++
			qr.MarksAwarded = s.def.MarksWrong
		}
		rec.Score += qr.MarksAwarded
		rec.PerQuestion[i] = qr
	}
	return rec
}

// autoSubmit is the clock expiry path. It funnels through the same phase
// guard as a user submit, so a timeout racing a manual submission still
// yields exactly one result.
func (s *Session) autoSubmit() {
	s.mu.Lock()
	already := s.result != nil
	rec, err := s.submitLocked(model.SubmitReasonTimeout)
	hook := s.onAutoSubmit
	s.mu.Unlock()

	if err != nil || rec == nil || already {
		return
	}
	if hook != nil {
		hook(s, rec)
	}
}
