package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/cuetprep/examd/internal/event"
	"github.com/cuetprep/examd/internal/model"
)

var (
	ErrResultNotFound  = errors.New("result not found")
	ErrResultEmbargoed = errors.New("result is still embargoed")
	ErrNotResultOwner  = errors.New("result belongs to another candidate")
)

// ReleaseStore is the persistence surface the release gate needs. The
// production implementation is repository.ResultRepository.
type ReleaseStore interface {
	GetReleaseState(ctx context.Context, id uuid.UUID) (*model.ReleaseState, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.ResultRecord, error)
	MarkAvailable(ctx context.Context, id uuid.UUID) (bool, error)
}

// ReleaseStatus is the poll response for a pending result.
type ReleaseStatus struct {
	ResultID    uuid.UUID          `json:"result_id"`
	Status      model.ResultStatus `json:"status"`
	AvailableAt time.Time          `json:"available_at"`
	SecondsLeft int                `json:"seconds_left"`
}

// ReleaseService is the result release gate. A result stays PENDING through
// its embargo window; the first release attempt after the window flips it to
// AVAILABLE and fires exactly one notification, no matter how many callers
// race.
type ReleaseService struct {
	store    ReleaseStore
	notifier event.Notifier
	log      zerolog.Logger
	now      func() time.Time
}

// NewReleaseService creates a new ReleaseService.
func NewReleaseService(store ReleaseStore, notifier event.Notifier, log zerolog.Logger) *ReleaseService {
	return &ReleaseService{
		store:    store,
		notifier: notifier,
		log:      log.With().Str("component", "release_service").Logger(),
		now:      time.Now,
	}
}

// Status returns the release-gate state of a result for polling clients.
func (s *ReleaseService) Status(ctx context.Context, resultID uuid.UUID, candidateID int) (*ReleaseStatus, error) {
	st, err := s.store.GetReleaseState(ctx, resultID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get release state: %w", err)
	}
	if st.CandidateID != candidateID {
		return nil, ErrNotResultOwner
	}

	secondsLeft := 0
	if st.Status == model.ResultStatusPending {
		if left := st.AvailableAt.Sub(s.now()); left > 0 {
			secondsLeft = int(left.Seconds()) + 1
		}
	}

	return &ReleaseStatus{
		ResultID:    st.ResultID,
		Status:      st.Status,
		AvailableAt: st.AvailableAt,
		SecondsLeft: secondsLeft,
	}, nil
}

// Trigger attempts to release a result. Before the embargo elapses it
// returns ErrResultEmbargoed. Afterwards it is idempotent: concurrent
// triggers elect one winner via a compare-and-set on the status column, and
// only the winner publishes the notification.
func (s *ReleaseService) Trigger(ctx context.Context, resultID uuid.UUID) (bool, error) {
	st, err := s.store.GetReleaseState(ctx, resultID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrResultNotFound
		}
		return false, fmt.Errorf("get release state: %w", err)
	}

	if st.Status == model.ResultStatusAvailable {
		return false, nil
	}
	if st.AvailableAt.After(s.now()) {
		return false, ErrResultEmbargoed
	}

	flipped, err := s.store.MarkAvailable(ctx, resultID)
	if err != nil {
		return false, fmt.Errorf("mark available: %w", err)
	}
	if !flipped {
		// Lost the race: another caller released first and owns the
		// notification.
		return false, nil
	}

	ev := event.ResultReleased{
		ResultID:    st.ResultID,
		CandidateID: st.CandidateID,
		TestID:      st.TestID,
		ReleasedAt:  s.now(),
	}
	if err := s.notifier.NotifyReleased(ctx, ev); err != nil {
		// The flip already happened; the AVAILABLE row is the source of
		// truth, so a lost notification is degraded UX, not lost data.
		s.log.Error().Err(err).Str("result_id", resultID.String()).Msg("Release notification failed")
	}

	s.log.Info().
		Str("result_id", resultID.String()).
		Int("candidate_id", st.CandidateID).
		Msg("Result released")
	return true, nil
}

// GetReleased returns the full result record once it is AVAILABLE. Pending
// results return ErrResultEmbargoed so the score never leaks early.
func (s *ReleaseService) GetReleased(ctx context.Context, resultID uuid.UUID, candidateID int) (*model.ResultRecord, error) {
	rec, err := s.store.GetByID(ctx, resultID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	if rec.CandidateID != candidateID {
		return nil, ErrNotResultOwner
	}
	if rec.Status != model.ResultStatusAvailable {
		return nil, ErrResultEmbargoed
	}
	return rec, nil
}
