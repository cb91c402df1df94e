package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cuetprep/examd/internal/model"
)

func makeDef(n, marksCorrect, marksWrong, durationSeconds int) *model.TestDefinition {
	return &model.TestDefinition{
		ID:              uuid.New(),
		Title:           "Mock CUET Paper",
		Questions:       makeQuestions(n),
		DurationSeconds: durationSeconds,
		MarksCorrect:    marksCorrect,
		MarksWrong:      marksWrong,
		Status:          model.TestStatusPublished,
	}
}

func activeSession(t *testing.T, def *model.TestDefinition) *Session {
	t.Helper()
	s, err := NewSession(def, 42, 10*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.BeginActive(context.Background(), NewAcknowledgedDisplay(true)); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if s.clock != nil {
			s.clock.Stop()
		}
	})
	return s
}

// expireClock forces the session clock past its deadline and delivers the
// tick, simulating the countdown reaching zero.
func expireClock(s *Session) {
	s.mu.Lock()
	c := s.clock
	s.mu.Unlock()
	c.Stop() // halt the real ticker goroutine first
	c.mu.Lock()
	c.stopped = false // rearm for the manual tick
	c.stopCh = make(chan struct{})
	c.now = func() time.Time { return c.deadline.Add(time.Second) }
	c.mu.Unlock()
	c.Tick()
}

func TestScoringAgainstMarkingScheme(t *testing.T) {
	def := makeDef(10, 4, -1, 3600)
	s := activeSession(t, def)

	// correct, correct, wrong, skip, wrong, correct, skip, skip, wrong, correct
	answers := []*int{
		intp(def.Questions[0].CorrectOption),
		intp(def.Questions[1].CorrectOption),
		intp(wrongOption(def.Questions[2])),
		nil,
		intp(wrongOption(def.Questions[4])),
		intp(def.Questions[5].CorrectOption),
		nil,
		nil,
		intp(wrongOption(def.Questions[8])),
		intp(def.Questions[9].CorrectOption),
	}
	for i, a := range answers {
		if a == nil {
			continue
		}
		if err := s.Select(i, *a); err != nil {
			t.Fatalf("select %d: %v", i, err)
		}
	}

	rec, err := s.Submit(model.SubmitReasonUser)
	if err != nil {
		t.Fatal(err)
	}

	if rec.CorrectCount != 4 || rec.WrongCount != 3 || rec.SkippedCount != 3 {
		t.Fatalf("counts = %d/%d/%d, want 4/3/3", rec.CorrectCount, rec.WrongCount, rec.SkippedCount)
	}
	if rec.Score != 13 {
		t.Fatalf("score = %d, want 13", rec.Score)
	}
	if rec.TotalMarks != 40 {
		t.Fatalf("total marks = %d, want 40", rec.TotalMarks)
	}
	if len(rec.PerQuestion) != 10 {
		t.Fatalf("per-question rows = %d, want 10", len(rec.PerQuestion))
	}
	if rec.Status != model.ResultStatusPending {
		t.Fatalf("fresh result status = %s, want PENDING", rec.Status)
	}
}

func TestSubmitAtMostOnce(t *testing.T) {
	s := activeSession(t, makeDef(5, 4, -1, 600))
	_ = s.Select(0, 0)

	first, err := s.Submit(model.SubmitReasonUser)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Submit(model.SubmitReasonTimeout)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatal("second submit must return the previously computed result")
	}
	if s.Phase() != model.PhaseTerminal {
		t.Fatalf("phase = %s, want TERMINAL", s.Phase())
	}
}

func TestTimeoutAutoSubmit(t *testing.T) {
	def := makeDef(10, 4, -1, 1800)
	s, err := NewSession(def, 7, 10*time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	var hookCalls int
	var hooked *model.ResultRecord
	var mu sync.Mutex
	s.SetAutoSubmitHook(func(_ *Session, rec *model.ResultRecord) {
		mu.Lock()
		hookCalls++
		hooked = rec
		mu.Unlock()
	})

	if err := s.BeginActive(context.Background(), NewAcknowledgedDisplay(true)); err != nil {
		t.Fatal(err)
	}
	_ = s.Select(0, def.Questions[0].CorrectOption)
	_ = s.Select(1, def.Questions[1].CorrectOption)

	expireClock(s)
	expireClock(s) // a re-subscribed timer delivering again must be a no-op

	if s.Phase() != model.PhaseTerminal {
		t.Fatalf("phase = %s, want TERMINAL", s.Phase())
	}
	rec := s.Result()
	if rec == nil {
		t.Fatal("timeout must produce a result")
	}
	if rec.SkippedCount != 8 {
		t.Fatalf("skipped = %d, want 8", rec.SkippedCount)
	}
	if rec.TimeSpentSeconds != def.DurationSeconds {
		t.Fatalf("time spent = %d, want %d", rec.TimeSpentSeconds, def.DurationSeconds)
	}
	if rec.SubmitReason != model.SubmitReasonTimeout {
		t.Fatalf("reason = %s, want timeout", rec.SubmitReason)
	}

	mu.Lock()
	defer mu.Unlock()
	if hookCalls != 1 {
		t.Fatalf("auto-submit hook fired %d times, want 1", hookCalls)
	}
	if hooked != rec {
		t.Fatal("hook must receive the computed result")
	}
}

func TestTimeoutRacingManualSubmit(t *testing.T) {
	s := activeSession(t, makeDef(10, 4, -1, 1800))
	_ = s.Select(0, 0)

	var wg sync.WaitGroup
	results := make([]*model.ResultRecord, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], _ = s.Submit(model.SubmitReasonUser)
	}()
	go func() {
		defer wg.Done()
		s.autoSubmit()
		results[1] = s.Result()
	}()
	wg.Wait()

	if results[0] == nil || results[1] == nil {
		t.Fatal("both paths must resolve to a result")
	}
	if results[0] != results[1] {
		t.Fatal("racing submissions must resolve to the same record")
	}
}

func TestViolationsNeverChangePhase(t *testing.T) {
	s := activeSession(t, makeDef(5, 4, -1, 600))

	kinds := []model.ViolationKind{
		model.ViolationTabSwitch,
		model.ViolationFullscreenExit,
		model.ViolationCopyAttempt,
		model.ViolationWindowBlur,
	}
	for i := 0; i < 50; i++ {
		if _, ok := s.Signal(kinds[i%len(kinds)]); !ok {
			t.Fatal("signal dropped while active")
		}
		if s.Phase() != model.PhaseActive {
			t.Fatalf("violation changed phase to %s", s.Phase())
		}
	}

	v := s.View()
	if v.ViolationCount != 50 {
		t.Fatalf("violation count = %d, want 50", v.ViolationCount)
	}
}

func TestLedgerOpsPhaseGated(t *testing.T) {
	def := makeDef(3, 4, -1, 600)
	s, err := NewSession(def, 1, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Select(0, 1); err != ErrNotActive {
		t.Fatalf("select in instructions = %v, want ErrNotActive", err)
	}
	if _, ok := s.Signal(model.ViolationTabSwitch); ok {
		t.Fatal("signal in instructions must be dropped")
	}
	if _, err := s.Submit(model.SubmitReasonUser); err != ErrSubmitFromIntro {
		t.Fatalf("submit in instructions = %v, want ErrSubmitFromIntro", err)
	}

	if err := s.BeginActive(context.Background(), NewAcknowledgedDisplay(true)); err != nil {
		t.Fatal(err)
	}
	defer s.clock.Stop()
	if _, err := s.Submit(model.SubmitReasonUser); err != nil {
		t.Fatal(err)
	}

	if err := s.Select(0, 1); err != ErrNotActive {
		t.Fatalf("select after terminal = %v, want ErrNotActive", err)
	}
	if err := s.Navigate(1); err != ErrNotActive {
		t.Fatalf("navigate after terminal = %v, want ErrNotActive", err)
	}
	if _, ok := s.Signal(model.ViolationTabSwitch); ok {
		t.Fatal("monitor must be detached after submit")
	}
}

func TestDisplayDenialBlocksActivePhase(t *testing.T) {
	s, err := NewSession(makeDef(3, 4, -1, 600), 1, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.BeginActive(context.Background(), NewAcknowledgedDisplay(false)); err != ErrDisplayDenied {
		t.Fatalf("begin without fullscreen ack = %v, want ErrDisplayDenied", err)
	}
	if s.Phase() != model.PhaseInstructions {
		t.Fatalf("denied begin left phase %s, want INSTRUCTIONS", s.Phase())
	}

	// Explicit retry with the capability granted succeeds.
	if err := s.BeginActive(context.Background(), NewAcknowledgedDisplay(true)); err != nil {
		t.Fatal(err)
	}
	defer s.clock.Stop()
	if s.Phase() != model.PhaseActive {
		t.Fatalf("phase = %s, want ACTIVE", s.Phase())
	}
}

type recordingDisplay struct {
	mu       sync.Mutex
	releases int
}

func (d *recordingDisplay) Acquire(ctx context.Context) error { return nil }
func (d *recordingDisplay) Release() {
	d.mu.Lock()
	d.releases++
	d.mu.Unlock()
}

func TestSubmitReleasesDisplayUnconditionally(t *testing.T) {
	s, err := NewSession(makeDef(3, 4, -1, 600), 1, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	disp := &recordingDisplay{}
	if err := s.BeginActive(context.Background(), disp); err != nil {
		t.Fatal(err)
	}
	defer s.clock.Stop()

	if _, err := s.Submit(model.SubmitReasonUser); err != nil {
		t.Fatal(err)
	}
	// Duplicate submit must not double-release.
	if _, err := s.Submit(model.SubmitReasonUser); err != nil {
		t.Fatal(err)
	}

	disp.mu.Lock()
	defer disp.mu.Unlock()
	if disp.releases != 1 {
		t.Fatalf("display released %d times, want 1", disp.releases)
	}
}

func TestFirstQuestionVisitedOnlyOnAdvance(t *testing.T) {
	s := activeSession(t, makeDef(5, 4, -1, 600))

	// Initial display of question 0 does not visit it.
	if c := s.View().Counts; c.NotVisited != 5 {
		t.Fatalf("fresh session not-visited = %d, want 5", c.NotVisited)
	}

	// Advancing past question 0 visits it.
	if err := s.Navigate(1); err != nil {
		t.Fatal(err)
	}
	c := s.View().Counts
	if c.NotVisited != 4 || c.NotAnswered != 1 {
		t.Fatalf("after advance: %+v", c)
	}

	// Navigating in place visits nothing.
	if err := s.Navigate(1); err != nil {
		t.Fatal(err)
	}
	if c := s.View().Counts; c.NotVisited != 4 {
		t.Fatalf("self-navigation changed visitation: %+v", c)
	}
}

func TestPartitionHoldsThroughActivePhase(t *testing.T) {
	def := makeDef(8, 4, -1, 600)
	s := activeSession(t, def)

	ops := []func() error{
		func() error { return s.Select(0, 1) },
		func() error { return s.Navigate(3) },
		func() error { return s.ToggleMark(3) },
		func() error { return s.Select(3, 0) },
		func() error { return s.Clear(3) },
		func() error { return s.Navigate(7) },
		func() error { return s.Select(7, 2) },
		func() error { return s.Navigate(0) },
	}
	for i, op := range ops {
		if err := op(); err != nil {
			t.Fatalf("op %d: %v", i, err)
		}
		c := s.View().Counts
		if c.Answered+c.NotAnswered+c.NotVisited != def.TotalQuestions() {
			t.Fatalf("op %d broke the partition: %+v", i, c)
		}
	}
}

func intp(v int) *int { return &v }

func wrongOption(q model.Question) int {
	return (q.CorrectOption + 1) % 4
}
