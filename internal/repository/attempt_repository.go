package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veriquiz/veriquiz-backend/internal/model"
)

// AttemptRepository handles attempt and answer data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// GetByID retrieves an attempt by ID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, quiz_id, student_id, status, started_at, submitted_at, submit_reason, score, max_score, violation_count
		 FROM attempts WHERE id = $1`, id,
	).Scan(&a.ID, &a.QuizID, &a.StudentID, &a.Status, &a.StartedAt, &a.SubmittedAt, &a.SubmitReason, &a.Score, &a.MaxScore, &a.ViolationCount)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetInProgress retrieves the open attempt for a quiz-student pair, if any.
func (r *AttemptRepository) GetInProgress(ctx context.Context, quizID uuid.UUID, studentID int) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, quiz_id, student_id, status, started_at, submitted_at, submit_reason, score, max_score, violation_count
		 FROM attempts
		 WHERE quiz_id = $1 AND student_id = $2 AND status = $3`,
		quizID, studentID, model.AttemptStatusInProgress,
	).Scan(&a.ID, &a.QuizID, &a.StudentID, &a.Status, &a.StartedAt, &a.SubmittedAt, &a.SubmitReason, &a.Score, &a.MaxScore, &a.ViolationCount)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CountByQuizAndStudent returns how many attempts the student has made.
func (r *AttemptRepository) CountByQuizAndStudent(ctx context.Context, quizID uuid.UUID, studentID int) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE quiz_id = $1 AND student_id = $2`,
		quizID, studentID,
	).Scan(&count)
	return count, err
}

// Create inserts a new in-progress attempt. The server records the
// start instant; clients only ever read it back.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (quiz_id, student_id, status)
		 VALUES ($1, $2, $3)
		 RETURNING id, started_at`,
		a.QuizID, a.StudentID, model.AttemptStatusInProgress,
	).Scan(&a.ID, &a.StartedAt)
}

// Submit transitions an attempt to SUBMITTED with its score. The status
// guard makes the transition idempotent under concurrent submitters;
// the returned bool reports whether this call performed the transition.
func (r *AttemptRepository) Submit(ctx context.Context, id uuid.UUID, reason model.SubmitReason, score, maxScore float64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, submitted_at = $2, submit_reason = $3, score = $4, max_score = $5
		 WHERE id = $6 AND status = $7`,
		model.AttemptStatusSubmitted, time.Now(), reason, score, maxScore,
		id, model.AttemptStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementViolationCount bumps the persisted violation counter.
func (r *AttemptRepository) IncrementViolationCount(ctx context.Context, id uuid.UUID, by int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts SET violation_count = violation_count + $1 WHERE id = $2`,
		by, id)
	return err
}

// UpsertAnswer stores one answer, replacing any prior value.
func (r *AttemptRepository) UpsertAnswer(ctx context.Context, a *model.Answer) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO answers (attempt_id, question_id, value, answered_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (attempt_id, question_id)
		 DO UPDATE SET value = EXCLUDED.value, answered_at = EXCLUDED.answered_at`,
		a.AttemptID, a.QuestionID, a.Value, a.AnsweredAt)
	return err
}

// BatchUpsertAnswers stores a batch of answers in one round trip.
// Used by the persistence worker when flushing queued saves.
func (r *AttemptRepository) BatchUpsertAnswers(ctx context.Context, answers []model.Answer) error {
	batch := &pgx.Batch{}
	for _, a := range answers {
		batch.Queue(
			`INSERT INTO answers (attempt_id, question_id, value, answered_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (attempt_id, question_id)
			 DO UPDATE SET value = EXCLUDED.value, answered_at = EXCLUDED.answered_at`,
			a.AttemptID, a.QuestionID, a.Value, a.AnsweredAt)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range answers {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// GetAnswers retrieves all answers for an attempt as question → value.
func (r *AttemptRepository) GetAnswers(ctx context.Context, attemptID uuid.UUID) (map[string]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, value FROM answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(map[string]string)
	for rows.Next() {
		var questionID uuid.UUID
		var value string
		if err := rows.Scan(&questionID, &value); err != nil {
			return nil, err
		}
		answers[questionID.String()] = value
	}
	return answers, rows.Err()
}

// ListResultsByQuiz retrieves graded results for all submitted attempts
// of a quiz.
func (r *AttemptRepository) ListResultsByQuiz(ctx context.Context, quizID uuid.UUID) ([]model.AttemptResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.quiz_id, q.title, a.student_id, u.name,
		        COALESCE(a.score, 0), COALESCE(a.max_score, 0),
		        a.submit_reason, a.submitted_at, a.violation_count
		 FROM attempts a
		 JOIN quizzes q ON q.id = a.quiz_id
		 JOIN users u ON u.id = a.student_id
		 WHERE a.quiz_id = $1 AND a.status = $2
		 ORDER BY u.name ASC`, quizID, model.AttemptStatusSubmitted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.AttemptResult
	for rows.Next() {
		var res model.AttemptResult
		if err := rows.Scan(&res.AttemptID, &res.QuizID, &res.QuizTitle, &res.StudentID, &res.StudentName,
			&res.Score, &res.MaxScore, &res.SubmitReason, &res.SubmittedAt, &res.ViolationCount); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// ListByStudent retrieves a student's attempt history.
func (r *AttemptRepository) ListByStudent(ctx context.Context, studentID int) ([]model.AttemptResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.quiz_id, q.title, a.student_id, '',
		        COALESCE(a.score, 0), COALESCE(a.max_score, 0),
		        a.submit_reason, a.submitted_at, a.violation_count
		 FROM attempts a
		 JOIN quizzes q ON q.id = a.quiz_id
		 WHERE a.student_id = $1 AND a.status = $2
		 ORDER BY a.submitted_at DESC`, studentID, model.AttemptStatusSubmitted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.AttemptResult
	for rows.Next() {
		var res model.AttemptResult
		if err := rows.Scan(&res.AttemptID, &res.QuizID, &res.QuizTitle, &res.StudentID, &res.StudentName,
			&res.Score, &res.MaxScore, &res.SubmitReason, &res.SubmittedAt, &res.ViolationCount); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
