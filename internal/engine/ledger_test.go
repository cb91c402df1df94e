package engine

import (
	"testing"

	"github.com/google/uuid"

	"github.com/cuetprep/examd/internal/model"
)

func makeQuestions(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			ID:            uuid.New(),
			Prompt:        "q",
			Options:       []string{"a", "b", "c", "d"},
			CorrectOption: i % 4,
			OrderNum:      i,
		}
	}
	return qs
}

func assertPartition(t *testing.T, l *Ledger) {
	t.Helper()
	c := l.Counts()
	if got := c.Answered + c.NotAnswered + c.NotVisited; got != l.Len() {
		t.Fatalf("partition broken: answered=%d notAnswered=%d notVisited=%d sum=%d want %d",
			c.Answered, c.NotAnswered, c.NotVisited, got, l.Len())
	}
}

func TestLedgerPartitionInvariant(t *testing.T) {
	l := NewLedger(makeQuestions(10))
	assertPartition(t, l)

	steps := []func() error{
		func() error { return l.Select(0, 1) },
		func() error { return l.MarkVisited(3) },
		func() error { return l.Select(3, 2) },
		func() error { return l.Clear(3) },
		func() error { return l.ToggleMark(5) },
		func() error { return l.MarkVisited(5) },
		func() error { return l.Select(9, 0) },
		func() error { return l.Clear(0) },
		func() error { return l.ToggleMark(5) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		assertPartition(t, l)
	}

	c := l.Counts()
	// Slot 0: selected then cleared → visited-unanswered.
	// Slot 3: visited, selected, cleared → visited-unanswered.
	// Slot 5: visited, never answered. Slot 9: answered.
	if c.Answered != 1 || c.NotAnswered != 3 || c.NotVisited != 6 {
		t.Fatalf("unexpected counts: %+v", c)
	}
	if c.Marked != 0 {
		t.Fatalf("mark toggled twice should be 0, got %d", c.Marked)
	}
}

func TestLedgerVisitedMonotonic(t *testing.T) {
	l := NewLedger(makeQuestions(3))

	if err := l.Select(1, 2); err != nil {
		t.Fatal(err)
	}
	if err := l.Clear(1); err != nil {
		t.Fatal(err)
	}
	r, _ := l.Record(1)
	if !r.Visited {
		t.Fatal("clear must not reset visited")
	}
	if r.SelectedOption != nil {
		t.Fatal("clear must remove the selection")
	}

	if err := l.MarkVisited(1); err != nil {
		t.Fatal(err)
	}
	r, _ = l.Record(1)
	if !r.Visited {
		t.Fatal("visited must stay true")
	}
}

func TestLedgerClearKeepsMark(t *testing.T) {
	l := NewLedger(makeQuestions(2))
	if err := l.ToggleMark(0); err != nil {
		t.Fatal(err)
	}
	if err := l.Select(0, 3); err != nil {
		t.Fatal(err)
	}
	if err := l.Clear(0); err != nil {
		t.Fatal(err)
	}
	r, _ := l.Record(0)
	if !r.MarkedForReview {
		t.Fatal("clear must not reset the review mark")
	}
}

func TestLedgerToggleMarkDoesNotTouchAnswer(t *testing.T) {
	l := NewLedger(makeQuestions(2))
	if err := l.Select(1, 2); err != nil {
		t.Fatal(err)
	}
	if err := l.ToggleMark(1); err != nil {
		t.Fatal(err)
	}
	r, _ := l.Record(1)
	if r.SelectedOption == nil || *r.SelectedOption != 2 {
		t.Fatal("toggle mark must not change the selection")
	}
}

func TestLedgerBounds(t *testing.T) {
	l := NewLedger(makeQuestions(2))

	cases := []struct {
		name string
		err  error
	}{
		{"select index", l.Select(2, 0)},
		{"select negative", l.Select(-1, 0)},
		{"select option", l.Select(0, 4)},
		{"clear", l.Clear(5)},
		{"mark", l.ToggleMark(-2)},
		{"visit", l.MarkVisited(2)},
	}
	for _, tc := range cases {
		if tc.err == nil {
			t.Errorf("%s: expected out-of-range error", tc.name)
		}
	}
}

func TestLedgerFreshSlotsNotVisited(t *testing.T) {
	l := NewLedger(makeQuestions(4))
	c := l.Counts()
	if c.NotVisited != 4 {
		t.Fatalf("fresh ledger should be all not-visited, got %+v", c)
	}
}
