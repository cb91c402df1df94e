package engine

import (
	"errors"
	"fmt"

	"github.com/cuetprep/examd/internal/model"
)

// ErrOutOfRange is returned for a question index or option outside the
// ledger's bounds.
var ErrOutOfRange = errors.New("out of range")

// Ledger tracks per-question answer state for one session. It is not safe
// for concurrent use on its own; the owning Session serializes access.
//
// A slot counts as visited only once the candidate has navigated away from
// it or answered it. The first question is therefore NOT visited on initial
// display — only when the candidate advances past it. This mirrors exam-hall
// palette semantics and is relied on by the palette partition.
type Ledger struct {
	records []model.AnswerRecord
}

// NewLedger builds a ledger with one untouched slot per question.
func NewLedger(questions []model.Question) *Ledger {
	records := make([]model.AnswerRecord, len(questions))
	for i, q := range questions {
		records[i] = model.AnswerRecord{QuestionID: q.ID}
	}
	return &Ledger{records: records}
}

// Select sets the chosen option for a slot and marks it visited.
func (l *Ledger) Select(index, option int) error {
	if err := l.check(index); err != nil {
		return err
	}
	if option < 0 || option >= 4 {
		return fmt.Errorf("option %d: %w", option, ErrOutOfRange)
	}
	opt := option
	l.records[index].SelectedOption = &opt
	l.records[index].Visited = true
	return nil
}

// Clear removes the selected option. Visited and marked state survive, so
// the slot falls back to visited-unanswered, never to not-visited.
func (l *Ledger) Clear(index int) error {
	if err := l.check(index); err != nil {
		return err
	}
	l.records[index].SelectedOption = nil
	return nil
}

// ToggleMark flips the review overlay without touching the answer.
func (l *Ledger) ToggleMark(index int) error {
	if err := l.check(index); err != nil {
		return err
	}
	l.records[index].MarkedForReview = !l.records[index].MarkedForReview
	return nil
}

// MarkVisited is idempotent and monotonic: visited never goes back to false.
func (l *Ledger) MarkVisited(index int) error {
	if err := l.check(index); err != nil {
		return err
	}
	l.records[index].Visited = true
	return nil
}

// Record returns a copy of one slot.
func (l *Ledger) Record(index int) (model.AnswerRecord, error) {
	if err := l.check(index); err != nil {
		return model.AnswerRecord{}, err
	}
	return l.records[index], nil
}

// Snapshot returns a copy of all slots in question order.
func (l *Ledger) Snapshot() []model.AnswerRecord {
	out := make([]model.AnswerRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of slots.
func (l *Ledger) Len() int {
	return len(l.records)
}

// Counts derives the palette aggregates. Precedence per slot is
// not-visited > visited-unanswered > answered; the three buckets partition
// the question set exactly. Marked overlays the partition.
func (l *Ledger) Counts() model.PaletteCounts {
	var c model.PaletteCounts
	for i := range l.records {
		r := &l.records[i]
		switch {
		case !r.Visited:
			c.NotVisited++
		case r.SelectedOption == nil:
			c.NotAnswered++
		default:
			c.Answered++
		}
		if r.MarkedForReview {
			c.Marked++
		}
	}
	return c
}

func (l *Ledger) check(index int) error {
	if index < 0 || index >= len(l.records) {
		return fmt.Errorf("question index %d outside [0,%d): %w", index, len(l.records), ErrOutOfRange)
	}
	return nil
}
