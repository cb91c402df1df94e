package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuetprep/examd/internal/engine"
	"github.com/cuetprep/examd/internal/middleware"
	"github.com/cuetprep/examd/internal/model"
	"github.com/cuetprep/examd/internal/response"
	"github.com/cuetprep/examd/internal/service"
	"github.com/cuetprep/examd/internal/validator"
)

// SessionHandler handles candidate-facing session endpoints: creation, the
// consent gate, ledger operations and submission.
type SessionHandler struct {
	sessionService *service.SessionService
	catalogService *service.CatalogService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService, catalogService *service.CatalogService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		catalogService: catalogService,
	}
}

// ListTests godoc
// GET /api/v1/candidate/tests?page=1&per_page=20
// Returns the catalog of published tests (no questions), paginated.
func (h *SessionHandler) ListTests(c *gin.Context) {
	tests, err := h.catalogService.ListPublished(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if tests == nil {
		tests = []model.TestDefinition{}
	}

	page := queryInt(c, "page", 1, 1, 1<<30)
	perPage := queryInt(c, "per_page", 20, 1, 100)
	start, end, pagination := pageWindow(page, perPage, len(tests))
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"tests": tests[start:end]}, pagination)
}

// queryInt parses an integer query parameter, falling back to def and
// clamping to [min, max].
func queryInt(c *gin.Context, name string, def, min, max int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(def)))
	if err != nil || v < min {
		return def
	}
	if v > max {
		return max
	}
	return v
}

// pageWindow maps a 1-based page onto a list of total items: the [start,
// end) slice bounds plus the filled pagination block. A page past the end
// yields an empty window, not an error.
func pageWindow(page, perPage, total int) (int, int, *response.Pagination) {
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return start, end, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
}

// StartSession godoc
// POST /api/v1/candidate/tests/:test_id/sessions
// Creates (or returns the existing) session for this candidate on a
// published test, along with the candidate-safe paper.
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	view, paper, err := h.sessionService.Start(c.Request.Context(), claims.CandidateID, testID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTestNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrTestNotFound)
		case errors.Is(err, service.ErrTestNotPublished), errors.Is(err, service.ErrNoQuestions):
			response.Fail(c, http.StatusConflict, response.ErrTestNotPublished)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session": view,
		"paper":   paper,
	})
}

// ListAttempts godoc
// GET /api/v1/candidate/tests/:test_id/attempts
// Returns the candidate's attempt history on a test, most recent first.
func (h *SessionHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempts, err := h.sessionService.Attempts(c.Request.Context(), claims.CandidateID, testID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if attempts == nil {
		attempts = []model.AttemptSummary{}
	}
	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// BeginSession godoc
// POST /api/v1/candidate/sessions/:session_id/begin
// The consent gate: acknowledges instructions, reports fullscreen and moves
// the session into the active phase, starting the clock.
func (h *SessionHandler) BeginSession(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req model.BeginSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.Begin(c.Request.Context(), sessionID, claims.CandidateID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInstructionsNotAccepted):
			response.Fail(c, http.StatusBadRequest, response.ErrInstructionsNotAccepted)
		case errors.Is(err, engine.ErrDisplayDenied):
			response.Fail(c, http.StatusPreconditionFailed, response.ErrDisplayCapabilityDenied)
		case errors.Is(err, engine.ErrAlreadyActive):
			response.Fail(c, http.StatusConflict, response.ErrPhaseViolation)
		default:
			h.failSession(c, err)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": view})
}

// GetState godoc
// GET /api/v1/candidate/sessions/:session_id/state
// Returns the authoritative session state for page reload: palette counts,
// per-question records, current slot and remaining time.
func (h *SessionHandler) GetState(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	view, err := h.sessionService.State(c.Request.Context(), sessionID, claims.CandidateID)
	if err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": view})
}

// Answer godoc
// POST /api/v1/candidate/sessions/:session_id/answers
// Applies one ledger operation (select, clear, mark, navigate) and returns
// the refreshed view.
func (h *SessionHandler) Answer(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.Answer(c.Request.Context(), sessionID, claims.CandidateID, &req)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNotActive):
			response.Fail(c, http.StatusConflict, response.ErrPhaseViolation)
		case errors.Is(err, engine.ErrOutOfRange):
			response.Fail(c, http.StatusBadRequest, response.ErrQuestionOutOfRange)
		case errors.Is(err, service.ErrUnknownAnswerAction):
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		default:
			h.failSession(c, err)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": view})
}

// Submit godoc
// POST /api/v1/candidate/sessions/:session_id/submit
// Ends the attempt. Repeat submissions return the same result ID; the score
// itself stays embargoed until the release gate opens.
func (h *SessionHandler) Submit(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	rec, err := h.sessionService.Submit(c.Request.Context(), sessionID, claims.CandidateID, model.SubmitReasonUser)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrResultPersistFailed):
			// The attempt is final; only durability lags behind. The client
			// shows the terminal screen and polls the release gate as usual.
			response.Success(c, http.StatusAccepted, gin.H{
				"result_id":    rec.ID,
				"status":       rec.Status,
				"available_at": rec.AvailableAt,
				"persisted":    false,
			})
		case errors.Is(err, engine.ErrSubmitFromIntro):
			response.Fail(c, http.StatusConflict, response.ErrPhaseViolation)
		default:
			h.failSession(c, err)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"result_id":    rec.ID,
		"status":       rec.Status,
		"available_at": rec.AvailableAt,
		"persisted":    true,
	})
}

// sessionParams extracts the authenticated claims and the session ID path
// parameter, writing the failure response itself when either is missing.
func (h *SessionHandler) sessionParams(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}
	return claims, sessionID, true
}

func (h *SessionHandler) failSession(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	case errors.Is(err, service.ErrNotSessionOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
