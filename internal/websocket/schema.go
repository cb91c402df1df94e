package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSignal Action = "signal"
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// SignalRequest is sent by the client to report an environment signal
// (tab switch, window blur, fullscreen exit, ...).
type SignalRequest struct {
	Action Action `json:"action"`
	Kind   string `json:"kind"`
}

// SubmitRequest is sent by the client to finish and score the attempt.
type SubmitRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventAdvisory Event = "advisory"
	EventGraded   Event = "graded"
	EventPong     Event = "pong"
)

// AdvisoryResponse is the transient banner pushed after a recorded signal.
// RequestReentry asks the client to prompt for fullscreen again; it is set
// at most once per session.
type AdvisoryResponse struct {
	Event            Event  `json:"event"`
	Kind             string `json:"kind"`
	Message          string `json:"message"`
	VisibleForMillis int64  `json:"visible_for_ms"`
	RequestReentry   bool   `json:"request_reentry,omitempty"`
	ViolationCount   int    `json:"violation_count"`
}

// GradedResponse confirms the attempt ended. It carries the result ID for
// the release-gate poll, never the score: the score stays embargoed.
type GradedResponse struct {
	Event    Event  `json:"event"`
	Status   string `json:"status"`
	ResultID string `json:"result_id"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}
