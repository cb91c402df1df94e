package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuetprep/examd/internal/middleware"
	"github.com/cuetprep/examd/internal/response"
	"github.com/cuetprep/examd/internal/service"
)

// ResultHandler exposes the release gate: status polling, the release
// trigger, and the released result itself.
type ResultHandler struct {
	releaseService *service.ReleaseService
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(releaseService *service.ReleaseService) *ResultHandler {
	return &ResultHandler{releaseService: releaseService}
}

// GetStatus godoc
// GET /api/v1/candidate/results/:result_id/status
// Returns the release-gate state: PENDING with a countdown, or AVAILABLE.
func (h *ResultHandler) GetStatus(c *gin.Context) {
	claims, resultID, ok := h.resultParams(c)
	if !ok {
		return
	}

	status, err := h.releaseService.Status(c.Request.Context(), resultID, claims.CandidateID)
	if err != nil {
		h.failResult(c, err)
		return
	}

	response.Success(c, http.StatusOK, status)
}

// Release godoc
// POST /api/v1/candidate/results/:result_id/release
// Attempts to open the release gate. Idempotent: clicking twice, or two
// tabs racing, still produces exactly one release.
func (h *ResultHandler) Release(c *gin.Context) {
	claims, resultID, ok := h.resultParams(c)
	if !ok {
		return
	}

	// Ownership check before the trigger so one candidate cannot force
	// another's release early.
	if _, err := h.releaseService.Status(c.Request.Context(), resultID, claims.CandidateID); err != nil {
		h.failResult(c, err)
		return
	}

	if _, err := h.releaseService.Trigger(c.Request.Context(), resultID); err != nil {
		if errors.Is(err, service.ErrResultEmbargoed) {
			response.Fail(c, http.StatusConflict, response.ErrResultEmbargoed)
			return
		}
		h.failResult(c, err)
		return
	}

	status, err := h.releaseService.Status(c.Request.Context(), resultID, claims.CandidateID)
	if err != nil {
		h.failResult(c, err)
		return
	}

	response.Success(c, http.StatusOK, status)
}

// GetResult godoc
// GET /api/v1/candidate/results/:result_id
// Returns the full released result: score, per-question breakdown,
// integrity counters. Embargoed results are never served.
func (h *ResultHandler) GetResult(c *gin.Context) {
	claims, resultID, ok := h.resultParams(c)
	if !ok {
		return
	}

	rec, err := h.releaseService.GetReleased(c.Request.Context(), resultID, claims.CandidateID)
	if err != nil {
		if errors.Is(err, service.ErrResultEmbargoed) {
			response.Fail(c, http.StatusConflict, response.ErrResultEmbargoed)
			return
		}
		h.failResult(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": rec})
}

func (h *ResultHandler) resultParams(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	resultID, err := uuid.Parse(c.Param("result_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}
	return claims, resultID, true
}

func (h *ResultHandler) failResult(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrResultNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrResultNotFound)
	case errors.Is(err, service.ErrNotResultOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
