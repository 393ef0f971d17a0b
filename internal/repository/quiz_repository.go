package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veriquiz/veriquiz-backend/internal/model"
)

// QuizRepository handles quiz data access. Settings are stored as a
// JSONB column and scanned through json.RawMessage.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

const quizColumns = `q.id, q.title, q.description, q.teacher_id, q.classroom_id,
	q.access_code, q.settings, q.status, q.created_at, q.updated_at,
	(SELECT COUNT(*) FROM questions qu WHERE qu.quiz_id = q.id)`

func scanQuiz(row interface{ Scan(dest ...any) error }) (*model.Quiz, error) {
	q := &model.Quiz{}
	var settings json.RawMessage
	err := row.Scan(&q.ID, &q.Title, &q.Description, &q.TeacherID, &q.ClassroomID,
		&q.AccessCode, &settings, &q.Status, &q.CreatedAt, &q.UpdatedAt, &q.QuestionCount)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &q.Settings); err != nil {
		return nil, fmt.Errorf("decode quiz settings: %w", err)
	}
	return q, nil
}

// GetByID retrieves a quiz by ID.
func (r *QuizRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	return scanQuiz(r.pool.QueryRow(ctx,
		`SELECT `+quizColumns+` FROM quizzes q WHERE q.id = $1`, id))
}

// GetAccessCode retrieves only the current access code for a quiz.
// Recovery verification uses this instead of any cached quiz copy.
func (r *QuizRepository) GetAccessCode(ctx context.Context, id uuid.UUID) (string, error) {
	var code string
	err := r.pool.QueryRow(ctx,
		`SELECT access_code FROM quizzes WHERE id = $1`, id,
	).Scan(&code)
	return code, err
}

// Create inserts a new quiz in DRAFT status.
func (r *QuizRepository) Create(ctx context.Context, q *model.Quiz) error {
	settings, err := json.Marshal(q.Settings)
	if err != nil {
		return fmt.Errorf("encode quiz settings: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO quizzes (title, description, teacher_id, classroom_id, access_code, settings, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		q.Title, q.Description, q.TeacherID, q.ClassroomID, q.AccessCode, settings, model.QuizStatusDraft,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
}

// Update modifies an existing quiz.
func (r *QuizRepository) Update(ctx context.Context, q *model.Quiz) error {
	settings, err := json.Marshal(q.Settings)
	if err != nil {
		return fmt.Errorf("encode quiz settings: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE quizzes
		 SET title = $1, description = $2, access_code = $3, settings = $4, updated_at = NOW()
		 WHERE id = $5`,
		q.Title, q.Description, q.AccessCode, settings, q.ID)
	return err
}

// UpdateStatus transitions a quiz between lifecycle states.
func (r *QuizRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.QuizStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE quizzes SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	return err
}

// Delete removes a quiz with its questions, attempts and violations.
func (r *QuizRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	return err
}

// ListByTeacher retrieves all quizzes owned by a teacher.
func (r *QuizRepository) ListByTeacher(ctx context.Context, teacherID int) ([]model.Quiz, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+quizColumns+` FROM quizzes q
		 WHERE q.teacher_id = $1
		 ORDER BY q.created_at DESC`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []model.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, *q)
	}
	return quizzes, rows.Err()
}

// ListPublishedForStudent retrieves published quizzes in the student's
// classrooms.
func (r *QuizRepository) ListPublishedForStudent(ctx context.Context, studentID int) ([]model.Quiz, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+quizColumns+` FROM quizzes q
		 JOIN classroom_students cs ON cs.classroom_id = q.classroom_id
		 WHERE cs.student_id = $1 AND q.status = $2
		 ORDER BY q.created_at DESC`, studentID, model.QuizStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []model.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, *q)
	}
	return quizzes, rows.Err()
}
