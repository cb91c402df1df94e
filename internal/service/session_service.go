package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cuetprep/examd/internal/config"
	"github.com/cuetprep/examd/internal/engine"
	"github.com/cuetprep/examd/internal/model"
	"github.com/cuetprep/examd/internal/repository"
)

var (
	ErrSessionNotFound         = errors.New("session not found")
	ErrNotSessionOwner         = errors.New("session belongs to another candidate")
	ErrInstructionsNotAccepted = errors.New("instructions must be accepted")
	ErrUnknownAnswerAction     = errors.New("unknown answer action")
	// ErrResultPersistFailed means the result was computed and queued for
	// background persistence, but the synchronous write failed. The attempt
	// itself is final; only durability lags.
	ErrResultPersistFailed = errors.New("result computed but not yet persisted")
)

// violationPayload is the queue item consumed by the violation worker.
type violationPayload struct {
	SessionID   string `json:"session_id"`
	CandidateID int    `json:"candidate_id"`
	TestID      string `json:"test_id"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Timestamp   int64  `json:"timestamp"`
}

// SessionService orchestrates live session engines: creation, the consent
// gate, ledger operations, integrity signals and submission. The engines
// themselves live in the in-process registry; Redis mirrors just enough
// state (start time, active session pointer) for monitors and reconnects.
type SessionService struct {
	registry   *engine.Registry
	catalog    *CatalogService
	resultRepo *repository.ResultRepository
	rdb        *redis.Client
	embargo    time.Duration
	log        zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	registry *engine.Registry,
	catalog *CatalogService,
	resultRepo *repository.ResultRepository,
	rdb *redis.Client,
	embargo time.Duration,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		registry:   registry,
		catalog:    catalog,
		resultRepo: resultRepo,
		rdb:        rdb,
		embargo:    embargo,
		log:        log.With().Str("component", "session_service").Logger(),
	}
}

// Start creates a session for a candidate on a published test, or returns
// the candidate's existing live session on that test. Reloading the lobby
// never spawns a second engine.
func (s *SessionService) Start(ctx context.Context, candidateID int, testID uuid.UUID) (*model.SessionView, *model.TestPaper, error) {
	if existing := s.registry.FindByCandidateAndTest(candidateID, testID); existing != nil && existing.Phase() != model.PhaseTerminal {
		paper, err := s.catalog.GetPaper(ctx, testID)
		if err != nil {
			return nil, nil, err
		}
		view := existing.View()
		return &view, paper, nil
	}

	def, err := s.catalog.GetDefinition(ctx, testID)
	if err != nil {
		return nil, nil, err
	}

	sess, err := engine.NewSession(def, candidateID, s.embargo)
	if err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	sess.SetAutoSubmitHook(s.handleAutoSubmit)

	// The lookup above is only a fast path; the definition fetch sits
	// between it and registration, so two concurrent starts can both get
	// here. PutIfAbsent settles the race on one engine: the loser's
	// speculative session is dropped before its clock ever runs, and a
	// terminal leftover from a finished attempt is evicted for the retake.
	owner, created := s.registry.PutIfAbsent(sess)
	if !created {
		view := owner.View()
		return &view, def.Paper(), nil
	}

	// Mirror the active-session pointer so monitors can find candidates
	// without walking the registry.
	if err := s.rdb.Set(ctx, config.CacheKey.SessionCandidateKey(candidateID), sess.ID.String(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Int("candidate_id", candidateID).Msg("Failed to cache active session pointer")
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("test_id", testID.String()).
		Int("candidate_id", candidateID).
		Msg("Session created")

	view := sess.View()
	return &view, def.Paper(), nil
}

// Begin is the consent gate: it verifies the instruction acknowledgement,
// builds the display capability from the client's fullscreen report and
// moves the session into the active phase. A denied capability leaves the
// session on the instructions screen; the candidate retries.
func (s *SessionService) Begin(ctx context.Context, sessionID uuid.UUID, candidateID int, req *model.BeginSessionRequest) (*model.SessionView, error) {
	sess, err := s.owned(sessionID, candidateID)
	if err != nil {
		return nil, err
	}

	if !req.AcceptInstructions {
		return nil, ErrInstructionsNotAccepted
	}

	display := engine.NewAcknowledgedDisplay(req.FullscreenAcquired)
	if err := sess.BeginActive(ctx, display); err != nil {
		return nil, err
	}

	view := sess.View()
	if view.StartedAt != nil {
		if err := s.rdb.Set(ctx, config.CacheKey.SessionStartKey(sessionID.String()), view.StartedAt.Unix(), 0).Err(); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Failed to cache start time")
		}
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Int("candidate_id", candidateID).
		Msg("Session entered active phase")
	return &view, nil
}

// State returns the authoritative session projection for a reload: palette,
// current slot and remaining time.
func (s *SessionService) State(ctx context.Context, sessionID uuid.UUID, candidateID int) (*model.SessionView, error) {
	sess, err := s.owned(sessionID, candidateID)
	if err != nil {
		return nil, err
	}
	view := sess.View()
	return &view, nil
}

// Answer applies one ledger operation and returns the refreshed view.
func (s *SessionService) Answer(ctx context.Context, sessionID uuid.UUID, candidateID int, req *model.AnswerRequest) (*model.SessionView, error) {
	sess, err := s.owned(sessionID, candidateID)
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case model.AnswerActionSelect:
		if req.Option == nil {
			return nil, fmt.Errorf("%w: select requires an option", ErrUnknownAnswerAction)
		}
		err = sess.Select(req.Index, *req.Option)
	case model.AnswerActionClear:
		err = sess.Clear(req.Index)
	case model.AnswerActionMark:
		err = sess.ToggleMark(req.Index)
	case model.AnswerActionNavigate:
		err = sess.Navigate(req.Index)
	default:
		return nil, ErrUnknownAnswerAction
	}
	if err != nil {
		return nil, err
	}

	view := sess.View()
	return &view, nil
}

// RecordSignal feeds one environment signal to the session's monitor. A
// recorded signal is queued for background persistence; a dropped one (the
// session was not active) is silently discarded.
func (s *SessionService) RecordSignal(ctx context.Context, sessionID uuid.UUID, candidateID int, kind model.ViolationKind) (engine.Advisory, bool, error) {
	sess, err := s.owned(sessionID, candidateID)
	if err != nil {
		return engine.Advisory{}, false, err
	}

	adv, recorded := sess.Signal(kind)
	if !recorded {
		return engine.Advisory{}, false, nil
	}

	payload, _ := json.Marshal(violationPayload{
		SessionID:   sessionID.String(),
		CandidateID: candidateID,
		TestID:      sess.TestID().String(),
		Kind:        string(kind),
		Description: adv.Message,
		Timestamp:   time.Now().Unix(),
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err(); err != nil {
		// The in-memory audit trail still holds the event; submission
		// persists the aggregate counts either way.
		s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Failed to enqueue violation")
	}

	return adv, true, nil
}

// Submit ends the attempt, scores it and persists the result. If the
// synchronous write fails the result is queued for the background worker and
// ErrResultPersistFailed is returned alongside the record: the caller shows
// the terminal screen either way.
func (s *SessionService) Submit(ctx context.Context, sessionID uuid.UUID, candidateID int, reason model.SubmitReason) (*model.ResultRecord, error) {
	sess, err := s.owned(sessionID, candidateID)
	if err != nil {
		return nil, err
	}

	rec, err := sess.Submit(reason)
	if err != nil {
		return nil, err
	}

	s.rdb.Del(ctx, config.CacheKey.SessionCandidateKey(candidateID))

	if err := s.persistResult(ctx, rec); err != nil {
		s.log.Error().Err(err).
			Str("session_id", sessionID.String()).
			Str("result_id", rec.ID.String()).
			Msg("Synchronous result persist failed, queued for retry")
		s.enqueueResult(ctx, rec)
		return rec, ErrResultPersistFailed
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Str("result_id", rec.ID.String()).
		Str("reason", string(reason)).
		Int("score", rec.Score).
		Msg("Session submitted")
	return rec, nil
}

// Attempts returns a candidate's attempt history on one test.
func (s *SessionService) Attempts(ctx context.Context, candidateID int, testID uuid.UUID) ([]model.AttemptSummary, error) {
	return s.resultRepo.ListByCandidateAndTest(ctx, candidateID, testID)
}

// Get returns the live session engine for WebSocket attachment.
func (s *SessionService) Get(sessionID uuid.UUID, candidateID int) (*engine.Session, error) {
	return s.owned(sessionID, candidateID)
}

func (s *SessionService) owned(sessionID uuid.UUID, candidateID int) (*engine.Session, error) {
	sess := s.registry.Get(sessionID)
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.CandidateID != candidateID {
		return nil, ErrNotSessionOwner
	}
	return sess, nil
}

// handleAutoSubmit is the clock-expiry hook. It runs outside the session
// lock on the clock goroutine, so it uses a fresh context and falls back to
// the retry queue exactly like a user submit.
func (s *SessionService) handleAutoSubmit(sess *engine.Session, rec *model.ResultRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.rdb.Del(ctx, config.CacheKey.SessionCandidateKey(sess.CandidateID))

	if err := s.persistResult(ctx, rec); err != nil {
		s.log.Error().Err(err).
			Str("session_id", sess.ID.String()).
			Str("result_id", rec.ID.String()).
			Msg("Auto-submit persist failed, queued for retry")
		s.enqueueResult(ctx, rec)
		return
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("result_id", rec.ID.String()).
		Msg("Session auto-submitted on timeout")
}

// persistResult writes the record and schedules it for release once the
// embargo elapses.
func (s *SessionService) persistResult(ctx context.Context, rec *model.ResultRecord) error {
	if err := s.resultRepo.Create(ctx, rec); err != nil {
		return fmt.Errorf("create result: %w", err)
	}
	if err := s.rdb.ZAdd(ctx, config.WorkerKey.ReleaseDueSet, redis.Z{
		Score:  float64(rec.AvailableAt.Unix()),
		Member: rec.ID.String(),
	}).Err(); err != nil {
		// The release worker's periodic database sweep covers a missed ZADD.
		s.log.Warn().Err(err).Str("result_id", rec.ID.String()).Msg("Failed to schedule release")
	}
	return nil
}

func (s *SessionService) enqueueResult(ctx context.Context, rec *model.ResultRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		s.log.Error().Err(err).Str("result_id", rec.ID.String()).Msg("CRITICAL: cannot marshal result for retry queue")
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, payload).Err(); err != nil {
		s.log.Error().Err(err).Str("result_id", rec.ID.String()).Msg("CRITICAL: failed to enqueue result for retry")
	}
}
