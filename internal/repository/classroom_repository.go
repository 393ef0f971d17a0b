package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veriquiz/veriquiz-backend/internal/model"
)

// ClassroomRepository handles classroom and enrollment data access.
type ClassroomRepository struct {
	pool *pgxpool.Pool
}

// NewClassroomRepository creates a new ClassroomRepository.
func NewClassroomRepository(pool *pgxpool.Pool) *ClassroomRepository {
	return &ClassroomRepository{pool: pool}
}

// GetByID retrieves a classroom by ID.
func (r *ClassroomRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Classroom, error) {
	c := &model.Classroom{}
	err := r.pool.QueryRow(ctx,
		`SELECT c.id, c.name, c.teacher_id, c.created_at, c.updated_at,
		        (SELECT COUNT(*) FROM classroom_students cs WHERE cs.classroom_id = c.id)
		 FROM classrooms c WHERE c.id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.TeacherID, &c.CreatedAt, &c.UpdatedAt, &c.StudentCount)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a new classroom.
func (r *ClassroomRepository) Create(ctx context.Context, c *model.Classroom) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO classrooms (name, teacher_id)
		 VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		c.Name, c.TeacherID,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// Update renames a classroom.
func (r *ClassroomRepository) Update(ctx context.Context, c *model.Classroom) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE classrooms SET name = $1, updated_at = NOW() WHERE id = $2`,
		c.Name, c.ID)
	return err
}

// Delete removes a classroom and its enrollments.
func (r *ClassroomRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM classrooms WHERE id = $1`, id)
	return err
}

// ListByTeacher retrieves all classrooms owned by a teacher.
func (r *ClassroomRepository) ListByTeacher(ctx context.Context, teacherID int) ([]model.Classroom, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.name, c.teacher_id, c.created_at, c.updated_at,
		        (SELECT COUNT(*) FROM classroom_students cs WHERE cs.classroom_id = c.id)
		 FROM classrooms c
		 WHERE c.teacher_id = $1
		 ORDER BY c.name ASC`, teacherID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classrooms []model.Classroom
	for rows.Next() {
		var c model.Classroom
		if err := rows.Scan(&c.ID, &c.Name, &c.TeacherID, &c.CreatedAt, &c.UpdatedAt, &c.StudentCount); err != nil {
			return nil, err
		}
		classrooms = append(classrooms, c)
	}
	return classrooms, rows.Err()
}

// ListByStudent retrieves all classrooms a student is enrolled in.
func (r *ClassroomRepository) ListByStudent(ctx context.Context, studentID int) ([]model.Classroom, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.name, c.teacher_id, c.created_at, c.updated_at, 0
		 FROM classrooms c
		 JOIN classroom_students cs ON cs.classroom_id = c.id
		 WHERE cs.student_id = $1
		 ORDER BY c.name ASC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classrooms []model.Classroom
	for rows.Next() {
		var c model.Classroom
		if err := rows.Scan(&c.ID, &c.Name, &c.TeacherID, &c.CreatedAt, &c.UpdatedAt, &c.StudentCount); err != nil {
			return nil, err
		}
		classrooms = append(classrooms, c)
	}
	return classrooms, rows.Err()
}

// EnrollStudents adds students to a classroom, skipping duplicates.
func (r *ClassroomRepository) EnrollStudents(ctx context.Context, classroomID uuid.UUID, studentIDs []int) error {
	for _, studentID := range studentIDs {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO classroom_students (classroom_id, student_id)
			 VALUES ($1, $2)
			 ON CONFLICT (classroom_id, student_id) DO NOTHING`,
			classroomID, studentID)
		if err != nil {
			return err
		}
	}
	return nil
}

// RemoveStudent removes a student from a classroom.
func (r *ClassroomRepository) RemoveStudent(ctx context.Context, classroomID uuid.UUID, studentID int) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM classroom_students WHERE classroom_id = $1 AND student_id = $2`,
		classroomID, studentID)
	return err
}

// IsStudentEnrolled checks whether a student belongs to a classroom.
func (r *ClassroomRepository) IsStudentEnrolled(ctx context.Context, classroomID uuid.UUID, studentID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM classroom_students WHERE classroom_id = $1 AND student_id = $2)`,
		classroomID, studentID,
	).Scan(&exists)
	return exists, err
}

// ListStudents retrieves all students enrolled in a classroom.
func (r *ClassroomRepository) ListStudents(ctx context.Context, classroomID uuid.UUID) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.name, u.email, u.password_hash, u.role, u.is_active, u.created_at, u.updated_at
		 FROM users u
		 JOIN classroom_students cs ON cs.student_id = u.id
		 WHERE cs.classroom_id = $1
		 ORDER BY u.name ASC`, classroomID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		students = append(students, u)
	}
	return students, rows.Err()
}
