package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuetprep/examd/internal/model"
)

// TestRepository loads immutable test definitions from PostgreSQL.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// GetByID retrieves a test definition with its ordered question list.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TestDefinition, error) {
	d := &model.TestDefinition{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, subject, duration_seconds, marks_correct, marks_wrong, status, created_at, updated_at
		 FROM tests
		 WHERE id = $1`, id,
	).Scan(&d.ID, &d.Title, &d.Subject, &d.DurationSeconds, &d.MarksCorrect, &d.MarksWrong, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	questions, err := r.listQuestions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	d.Questions = questions

	return d, nil
}

// ListPublished retrieves all published tests, without questions. Used for
// the catalog and cache prewarm.
func (r *TestRepository) ListPublished(ctx context.Context) ([]model.TestDefinition, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, subject, duration_seconds, marks_correct, marks_wrong, status, created_at, updated_at
		 FROM tests
		 WHERE status = $1
		 ORDER BY created_at DESC`, model.TestStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.TestDefinition
	for rows.Next() {
		var d model.TestDefinition
		if err := rows.Scan(&d.ID, &d.Title, &d.Subject, &d.DurationSeconds, &d.MarksCorrect, &d.MarksWrong, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		tests = append(tests, d)
	}
	return tests, rows.Err()
}

func (r *TestRepository) listQuestions(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, prompt, options, correct_option, COALESCE(explanation, ''), COALESCE(subject, ''), order_num
		 FROM questions
		 WHERE test_id = $1
		 ORDER BY order_num ASC`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var rawOptions []byte
		if err := rows.Scan(&q.ID, &q.Prompt, &rawOptions, &q.CorrectOption, &q.Explanation, &q.Subject, &q.OrderNum); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawOptions, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options for question %s: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
