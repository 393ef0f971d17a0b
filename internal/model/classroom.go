package model

import (
	"time"

	"github.com/google/uuid"
)

// Classroom groups students under a teacher. Quizzes are assigned to
// classrooms, and only enrolled students may start attempts.
type Classroom struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	TeacherID    int       `json:"teacher_id"`
	StudentCount int       `json:"student_count,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateClassroomRequest is the payload for creating a classroom.
type CreateClassroomRequest struct {
	Name string `json:"name" binding:"required,min=2,max=100"`
}

// UpdateClassroomRequest is the payload for renaming a classroom.
type UpdateClassroomRequest struct {
	Name string `json:"name" binding:"required,min=2,max=100"`
}

// EnrollStudentsRequest adds students to a classroom by ID.
type EnrollStudentsRequest struct {
	StudentIDs []int `json:"student_ids" binding:"required,min=1,dive,min=1"`
}
