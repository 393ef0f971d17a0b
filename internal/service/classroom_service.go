package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/veriquiz/veriquiz-backend/internal/model"
	"github.com/veriquiz/veriquiz-backend/internal/repository"
)

// ErrNotClassroomOwner is returned when a teacher touches a classroom
// they do not own.
var ErrNotClassroomOwner = errors.New("not the classroom owner")

// ClassroomService handles classroom and enrollment business logic.
type ClassroomService struct {
	classrooms *repository.ClassroomRepository
	users      *repository.UserRepository
}

// NewClassroomService creates a new ClassroomService.
func NewClassroomService(classrooms *repository.ClassroomRepository, users *repository.UserRepository) *ClassroomService {
	return &ClassroomService{classrooms: classrooms, users: users}
}

// Create adds a classroom owned by the teacher.
func (s *ClassroomService) Create(ctx context.Context, teacherID int, req *model.CreateClassroomRequest) (*model.Classroom, error) {
	classroom := &model.Classroom{Name: req.Name, TeacherID: teacherID}
	if err := s.classrooms.Create(ctx, classroom); err != nil {
		return nil, fmt.Errorf("create classroom: %w", err)
	}
	return classroom, nil
}

// Update renames a classroom owned by the teacher.
func (s *ClassroomService) Update(ctx context.Context, teacherID int, id uuid.UUID, req *model.UpdateClassroomRequest) (*model.Classroom, error) {
	classroom, err := s.getOwned(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	classroom.Name = req.Name
	if err := s.classrooms.Update(ctx, classroom); err != nil {
		return nil, fmt.Errorf("update classroom: %w", err)
	}
	return classroom, nil
}

// Delete removes a classroom owned by the teacher.
func (s *ClassroomService) Delete(ctx context.Context, teacherID int, id uuid.UUID) error {
	if _, err := s.getOwned(ctx, teacherID, id); err != nil {
		return err
	}
	return s.classrooms.Delete(ctx, id)
}

// Get retrieves a classroom owned by the teacher.
func (s *ClassroomService) Get(ctx context.Context, teacherID int, id uuid.UUID) (*model.Classroom, error) {
	return s.getOwned(ctx, teacherID, id)
}

// ListByTeacher retrieves the teacher's classrooms.
func (s *ClassroomService) ListByTeacher(ctx context.Context, teacherID int) ([]model.Classroom, error) {
	return s.classrooms.ListByTeacher(ctx, teacherID)
}

// ListByStudent retrieves the classrooms a student is enrolled in.
func (s *ClassroomService) ListByStudent(ctx context.Context, studentID int) ([]model.Classroom, error) {
	return s.classrooms.ListByStudent(ctx, studentID)
}

// EnrollStudents adds students to a classroom. Non-student IDs are
// rejected before any enrollment happens.
func (s *ClassroomService) EnrollStudents(ctx context.Context, teacherID int, id uuid.UUID, studentIDs []int) error {
	if _, err := s.getOwned(ctx, teacherID, id); err != nil {
		return err
	}

	for _, studentID := range studentIDs {
		user, err := s.users.GetByID(ctx, studentID)
		if err != nil {
			return fmt.Errorf("get student %d: %w", studentID, err)
		}
		if user.Role != model.RoleStudent {
			return fmt.Errorf("user %d is not a student", studentID)
		}
	}

	return s.classrooms.EnrollStudents(ctx, id, studentIDs)
}

// RemoveStudent removes a student from a classroom.
func (s *ClassroomService) RemoveStudent(ctx context.Context, teacherID int, id uuid.UUID, studentID int) error {
	if _, err := s.getOwned(ctx, teacherID, id); err != nil {
		return err
	}
	return s.classrooms.RemoveStudent(ctx, id, studentID)
}

// ListStudents retrieves the students enrolled in a classroom.
func (s *ClassroomService) ListStudents(ctx context.Context, teacherID int, id uuid.UUID) ([]model.User, error) {
	if _, err := s.getOwned(ctx, teacherID, id); err != nil {
		return nil, err
	}
	return s.classrooms.ListStudents(ctx, id)
}

func (s *ClassroomService) getOwned(ctx context.Context, teacherID int, id uuid.UUID) (*model.Classroom, error) {
	classroom, err := s.classrooms.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get classroom: %w", err)
	}
	if classroom.TeacherID != teacherID {
		return nil, ErrNotClassroomOwner
	}
	return classroom, nil
}
