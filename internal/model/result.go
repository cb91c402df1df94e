package model

import (
	"time"

	"github.com/google/uuid"
)

// ResultStatus is the release-gate status of a result record. PENDING flips
// to AVAILABLE exactly once; AVAILABLE is terminal.
type ResultStatus string

const (
	ResultStatusPending   ResultStatus = "PENDING"
	ResultStatusAvailable ResultStatus = "AVAILABLE"
)

// QuestionResult is the per-question breakdown of a scored attempt.
type QuestionResult struct {
	QuestionID     uuid.UUID `json:"question_id"`
	SelectedOption *int      `json:"selected_option"`
	CorrectOption  int       `json:"correct_option"`
	IsCorrect      bool      `json:"is_correct"`
	MarksAwarded   int       `json:"marks_awarded"`
}

// ResultRecord is the immutable outcome of one submitted session. It is
// created exactly once by the scoring engine; the only permitted mutation
// afterwards is the PENDING → AVAILABLE status flip by the release gate.
type ResultRecord struct {
	ID               uuid.UUID        `json:"id"`
	SessionID        uuid.UUID        `json:"session_id"`
	CandidateID      int              `json:"candidate_id"`
	TestID           uuid.UUID        `json:"test_id"`
	PerQuestion      []QuestionResult `json:"per_question"`
	Score            int              `json:"score"`
	TotalMarks       int              `json:"total_marks"`
	CorrectCount     int              `json:"correct_count"`
	WrongCount       int              `json:"wrong_count"`
	SkippedCount     int              `json:"skipped_count"`
	TimeSpentSeconds int              `json:"time_spent_seconds"`
	ViolationCount   int              `json:"violation_count"`
	TabSwitchCount   int              `json:"tab_switch_count"`
	SubmitReason     SubmitReason     `json:"submit_reason"`
	SubmittedAt      time.Time        `json:"submitted_at"`
	Status           ResultStatus     `json:"status"`
	AvailableAt      time.Time        `json:"available_at"`
	ReleasedAt       *time.Time       `json:"released_at,omitempty"`
}

// ReleaseState is the minimal release-gate view of a result.
type ReleaseState struct {
	ResultID    uuid.UUID    `json:"result_id"`
	CandidateID int          `json:"candidate_id"`
	TestID      uuid.UUID    `json:"test_id"`
	Status      ResultStatus `json:"status"`
	AvailableAt time.Time    `json:"available_at"`
}

// AttemptSummary is one row of a candidate's attempt history on a test.
type AttemptSummary struct {
	ResultID    uuid.UUID    `json:"result_id"`
	Score       int          `json:"score"`
	TotalMarks  int          `json:"total_marks"`
	SubmittedAt time.Time    `json:"submitted_at"`
	Status      ResultStatus `json:"status"`
}
