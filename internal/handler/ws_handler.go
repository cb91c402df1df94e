package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cuetprep/examd/internal/middleware"
	"github.com/cuetprep/examd/internal/model"
	"github.com/cuetprep/examd/internal/service"
	ws "github.com/cuetprep/examd/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the live session channel: environment signals in,
// advisory banners out, with a ping action for the authoritative clock.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/candidate/sessions/:session_id/stream
// Upgrades to WebSocket for real-time integrity signals and advisories.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	// Ownership check before the upgrade so a foreign session never even
	// gets a socket.
	if _, err := h.sessionService.Get(sessionID, claims.CandidateID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("candidate_id", claims.CandidateID).
		Str("session_id", sessionID.String()).
		Logger()

	wsLog.Info().Msg("Candidate connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			ws.WriteError(conn, "malformed message")
			continue
		}

		switch envelope.Action {
		case ws.ActionSignal:
			h.handleSignal(c, conn, wsLog, sessionID, claims.CandidateID, raw)
		case ws.ActionSubmit:
			h.handleSubmit(c, conn, wsLog, sessionID, claims.CandidateID)
		case ws.ActionPing:
			h.handlePing(c, conn, sessionID, claims.CandidateID)
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(envelope.Action))
		}
	}
}

// handleSignal records one environment signal and pushes the advisory
// banner back. Signals arriving outside the active phase are dropped
// without a response; they are advisory, not errors.
func (h *WSHandler) handleSignal(c *gin.Context, conn *websocket.Conn, wsLog zerolog.Logger, sessionID uuid.UUID, candidateID int, raw []byte) {
	var msg ws.SignalRequest
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Kind == "" {
		ws.WriteError(conn, "kind is required")
		return
	}

	// The public socket accepts only the canonical signal set; extra
	// capabilities report through their own server-side channel.
	kind := model.ViolationKind(msg.Kind)
	if !model.KnownViolationKind(kind) {
		ws.WriteError(conn, "unknown signal kind: "+msg.Kind)
		return
	}

	adv, recorded, err := h.sessionService.RecordSignal(c.Request.Context(), sessionID, candidateID, kind)
	if err != nil {
		ws.WriteError(conn, "signal failed")
		return
	}
	if !recorded {
		return
	}

	view, err := h.sessionService.State(c.Request.Context(), sessionID, candidateID)
	violationCount := 0
	if err == nil {
		violationCount = view.ViolationCount
	}

	ws.WriteTyped(conn, ws.AdvisoryResponse{
		Event:            ws.EventAdvisory,
		Kind:             string(adv.Kind),
		Message:          adv.Message,
		VisibleForMillis: adv.VisibleForMillis,
		RequestReentry:   adv.RequestReentry,
		ViolationCount:   violationCount,
	})
}

// handleSubmit ends the attempt over the socket. The response carries the
// result ID only; the score stays embargoed behind the release gate.
func (h *WSHandler) handleSubmit(c *gin.Context, conn *websocket.Conn, wsLog zerolog.Logger, sessionID uuid.UUID, candidateID int) {
	rec, err := h.sessionService.Submit(c.Request.Context(), sessionID, candidateID, model.SubmitReasonUser)
	if err != nil && rec == nil {
		wsLog.Error().Err(err).Msg("Submit over socket failed")
		ws.WriteError(conn, "submit failed")
		return
	}

	status := "submitted"
	if err != nil {
		// Result computed but not yet durable; the background worker
		// retries. The terminal screen shows either way.
		status = "submitted_pending_save"
	}

	wsLog.Info().Str("result_id", rec.ID.String()).Msg("Submitted over socket")
	ws.WriteTyped(conn, ws.GradedResponse{
		Event:    ws.EventGraded,
		Status:   status,
		ResultID: rec.ID.String(),
	})
}

// handlePing answers with the server-authoritative remaining time so the
// client clock can resynchronize.
func (h *WSHandler) handlePing(c *gin.Context, conn *websocket.Conn, sessionID uuid.UUID, candidateID int) {
	remaining := 0
	if view, err := h.sessionService.State(c.Request.Context(), sessionID, candidateID); err == nil {
		remaining = view.RemainingSeconds
	}
	ws.WriteTyped(conn, ws.PongResponse{
		Event:            ws.EventPong,
		RemainingSeconds: remaining,
	})
}
