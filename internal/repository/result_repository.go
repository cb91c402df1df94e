package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuetprep/examd/internal/model"
)

// ResultRepository persists scored results and drives the release gate.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Create inserts a result record. Inserting the same session twice is a
// silent no-op so a retried submission never duplicates a result.
func (r *ResultRepository) Create(ctx context.Context, rec *model.ResultRecord) error {
	perQuestion, err := json.Marshal(rec.PerQuestion)
	if err != nil {
		return fmt.Errorf("encode per-question breakdown: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO results (
			id, session_id, candidate_id, test_id, per_question,
			score, total_marks, correct_count, wrong_count, skipped_count,
			time_spent_seconds, violation_count, tab_switch_count,
			submit_reason, submitted_at, status, available_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (session_id) DO NOTHING`,
		rec.ID, rec.SessionID, rec.CandidateID, rec.TestID, perQuestion,
		rec.Score, rec.TotalMarks, rec.CorrectCount, rec.WrongCount, rec.SkippedCount,
		rec.TimeSpentSeconds, rec.ViolationCount, rec.TabSwitchCount,
		rec.SubmitReason, rec.SubmittedAt, rec.Status, rec.AvailableAt,
	)
	return err
}

// GetByID retrieves a full result record.
func (r *ResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ResultRecord, error) {
	rec := &model.ResultRecord{}
	var perQuestion []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, session_id, candidate_id, test_id, per_question,
			score, total_marks, correct_count, wrong_count, skipped_count,
			time_spent_seconds, violation_count, tab_switch_count,
			submit_reason, submitted_at, status, available_at, released_at
		 FROM results
		 WHERE id = $1`, id,
	).Scan(
		&rec.ID, &rec.SessionID, &rec.CandidateID, &rec.TestID, &perQuestion,
		&rec.Score, &rec.TotalMarks, &rec.CorrectCount, &rec.WrongCount, &rec.SkippedCount,
		&rec.TimeSpentSeconds, &rec.ViolationCount, &rec.TabSwitchCount,
		&rec.SubmitReason, &rec.SubmittedAt, &rec.Status, &rec.AvailableAt, &rec.ReleasedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(perQuestion, &rec.PerQuestion); err != nil {
		return nil, fmt.Errorf("decode per-question breakdown: %w", err)
	}
	return rec, nil
}

// GetReleaseState retrieves only the release-gate fields of a result.
func (r *ResultRepository) GetReleaseState(ctx context.Context, id uuid.UUID) (*model.ReleaseState, error) {
	st := &model.ReleaseState{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, candidate_id, test_id, status, available_at
		 FROM results
		 WHERE id = $1`, id,
	).Scan(&st.ResultID, &st.CandidateID, &st.TestID, &st.Status, &st.AvailableAt)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// MarkAvailable flips a PENDING result to AVAILABLE if its embargo has
// elapsed. It returns true only for the caller that actually performed the
// flip, so concurrent releases elect exactly one winner.
func (r *ResultRepository) MarkAvailable(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE results
		 SET status = $1, released_at = NOW()
		 WHERE id = $2 AND status = $3 AND available_at <= NOW()`,
		model.ResultStatusAvailable, id, model.ResultStatusPending,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListDuePending retrieves IDs of PENDING results whose embargo has already
// elapsed. Used by the release worker's database sweep, which catches
// results missed by the Redis schedule.
func (r *ResultRepository) ListDuePending(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id
		 FROM results
		 WHERE status = $1 AND available_at <= NOW()
		 ORDER BY available_at ASC
		 LIMIT $2`, model.ResultStatusPending, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByCandidateAndTest retrieves a candidate's attempt history on one test,
// most recent first.
func (r *ResultRepository) ListByCandidateAndTest(ctx context.Context, candidateID int, testID uuid.UUID) ([]model.AttemptSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, score, total_marks, submitted_at, status
		 FROM results
		 WHERE candidate_id = $1 AND test_id = $2
		 ORDER BY submitted_at DESC`, candidateID, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.AttemptSummary
	for rows.Next() {
		var a model.AttemptSummary
		if err := rows.Scan(&a.ResultID, &a.Score, &a.TotalMarks, &a.SubmittedAt, &a.Status); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
