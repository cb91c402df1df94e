package model

import (
	"time"

	"github.com/google/uuid"
)

// Phase enumerates the lifecycle of one exam session. Transitions are
// one-directional: INSTRUCTIONS → ACTIVE → SUBMITTING → TERMINAL.
type Phase string

const (
	PhaseInstructions Phase = "INSTRUCTIONS"
	PhaseActive       Phase = "ACTIVE"
	PhaseSubmitting   Phase = "SUBMITTING"
	PhaseTerminal     Phase = "TERMINAL"
)

// SubmitReason records what triggered the submission.
type SubmitReason string

const (
	SubmitReasonUser    SubmitReason = "user_initiated"
	SubmitReasonTimeout SubmitReason = "timeout"
)

// AnswerRecord is the per-question slot of the answer ledger. Visited is
// monotonic: once true it never goes back to false.
type AnswerRecord struct {
	QuestionID      uuid.UUID `json:"question_id"`
	SelectedOption  *int      `json:"selected_option"`
	MarkedForReview bool      `json:"marked_for_review"`
	Visited         bool      `json:"visited"`
}

// PaletteCounts are the derived ledger aggregates driving the question
// palette. Answered, NotAnswered and NotVisited partition the question set
// exactly; Marked is an orthogonal overlay.
type PaletteCounts struct {
	Answered    int `json:"answered"`
	NotAnswered int `json:"not_answered"`
	NotVisited  int `json:"not_visited"`
	Marked      int `json:"marked"`
}

// SessionView is the state projection returned to the candidate on reload:
// the palette, the current slot and the authoritative remaining time.
type SessionView struct {
	SessionID        uuid.UUID      `json:"session_id"`
	TestID           uuid.UUID      `json:"test_id"`
	Phase            Phase          `json:"phase"`
	CurrentIndex     int            `json:"current_index"`
	RemainingSeconds int            `json:"remaining_seconds"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	Records          []AnswerRecord `json:"records"`
	Counts           PaletteCounts  `json:"counts"`
	ViolationCount   int            `json:"violation_count"`
	TabSwitchCount   int            `json:"tab_switch_count"`
	ResultID         *uuid.UUID     `json:"result_id,omitempty"`
}

// StartSessionRequest is the payload for starting a session on a test.
type StartSessionRequest struct {
	// Reserved for future options (language, accessibility). Kept so the
	// endpoint accepts an empty JSON object today.
}

// BeginSessionRequest is the consent gate payload. The candidate must
// acknowledge the instructions and report that fullscreen was acquired.
// No binding:"required" on the booleans: an explicit false must bind
// cleanly so the service can answer with the dedicated consent error
// rather than a generic validation failure.
type BeginSessionRequest struct {
	AcceptInstructions bool `json:"accept_instructions"`
	FullscreenAcquired bool `json:"fullscreen_acquired"`
}

// AnswerAction enumerates ledger operations over the answers endpoint.
type AnswerAction string

const (
	AnswerActionSelect   AnswerAction = "select"
	AnswerActionClear    AnswerAction = "clear"
	AnswerActionMark     AnswerAction = "mark"
	AnswerActionNavigate AnswerAction = "navigate"
)

// AnswerRequest is the payload for a single ledger operation.
type AnswerRequest struct {
	Action AnswerAction `json:"action" binding:"required,oneof=select clear mark navigate"`
	Index  int          `json:"index" binding:"min=0"`
	Option *int         `json:"option" binding:"omitempty,min=0,max=3"`
}

// SubmitRequest is the payload for a user-initiated submission.
type SubmitRequest struct {
	// Submission carries no options; the body exists so clients POST JSON.
}
