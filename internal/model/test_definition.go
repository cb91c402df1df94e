package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TestStatus enumerates the possible states of a test in the catalog.
type TestStatus string

const (
	TestStatusDraft     TestStatus = "DRAFT"
	TestStatusPublished TestStatus = "PUBLISHED"
	TestStatusArchived  TestStatus = "ARCHIVED"
)

// TestDefinition is the immutable definition of one test: the ordered
// question list, the duration, and the marking scheme. It is loaded once
// per session and never mutated afterwards.
type TestDefinition struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Subject         string     `json:"subject,omitempty"`
	Questions       []Question `json:"questions"`
	DurationSeconds int        `json:"duration_seconds"`
	MarksCorrect    int        `json:"marks_correct"`
	MarksWrong      int        `json:"marks_wrong"` // zero or negative
	Status          TestStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TotalQuestions returns the number of questions in the definition.
func (d *TestDefinition) TotalQuestions() int {
	return len(d.Questions)
}

// TotalMarks returns the maximum achievable score.
func (d *TestDefinition) TotalMarks() int {
	return len(d.Questions) * d.MarksCorrect
}

// Question is a single four-option multiple choice question.
type Question struct {
	ID            uuid.UUID `json:"id"`
	Prompt        string    `json:"prompt"`
	Options       []string  `json:"options"`
	CorrectOption int       `json:"correct_option"`
	Explanation   string    `json:"explanation,omitempty"`
	Subject       string    `json:"subject,omitempty"`
	OrderNum      int       `json:"order_num"`
}

// TestPaper is the Redis-cached payload sent to candidates. It carries no
// correct answers or explanations.
type TestPaper struct {
	TestID          uuid.UUID            `json:"test_id"`
	Title           string               `json:"title"`
	Subject         string               `json:"subject,omitempty"`
	DurationSeconds int                  `json:"duration_seconds"`
	MarksCorrect    int                  `json:"marks_correct"`
	MarksWrong      int                  `json:"marks_wrong"`
	Questions       []QuestionForDisplay `json:"questions"`
}

// QuestionForDisplay is a question stripped of its answer key.
type QuestionForDisplay struct {
	ID       uuid.UUID `json:"id"`
	Prompt   string    `json:"prompt"`
	Options  []string  `json:"options"`
	Subject  string    `json:"subject,omitempty"`
	OrderNum int       `json:"order_num"`
}

// Paper builds the candidate-safe projection of the definition.
func (d *TestDefinition) Paper() *TestPaper {
	qs := make([]QuestionForDisplay, len(d.Questions))
	for i, q := range d.Questions {
		qs[i] = QuestionForDisplay{
			ID:       q.ID,
			Prompt:   q.Prompt,
			Options:  q.Options,
			Subject:  q.Subject,
			OrderNum: q.OrderNum,
		}
	}
	return &TestPaper{
		TestID:          d.ID,
		Title:           d.Title,
		Subject:         d.Subject,
		DurationSeconds: d.DurationSeconds,
		MarksCorrect:    d.MarksCorrect,
		MarksWrong:      d.MarksWrong,
		Questions:       qs,
	}
}

// OptionsJSON marshals question options for storage.
func (q *Question) OptionsJSON() json.RawMessage {
	raw, _ := json.Marshal(q.Options)
	return raw
}
