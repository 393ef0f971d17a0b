package model

import (
	"time"

	"github.com/google/uuid"
)

// QuizStatus enumerates quiz lifecycle states.
type QuizStatus string

const (
	QuizStatusDraft     QuizStatus = "DRAFT"
	QuizStatusPublished QuizStatus = "PUBLISHED"
	QuizStatusClosed    QuizStatus = "CLOSED"
)

// QuizSettings holds the per-quiz proctoring and presentation options.
// Zero values disable every restriction.
type QuizSettings struct {
	RequireFullscreen       bool `json:"require_fullscreen"`
	PreventTabSwitching     bool `json:"prevent_tab_switching"`
	ShowQuestionsOneAtATime bool `json:"show_questions_one_at_a_time"`
	ShowProgressBar         bool `json:"show_progress_bar"`
	ShuffleQuestions        bool `json:"shuffle_questions"`
	TimeLimitMinutes        int  `json:"time_limit_minutes"`
	AllowedAttempts         int  `json:"allowed_attempts"`
}

// Proctored reports whether any integrity monitoring is active.
func (s QuizSettings) Proctored() bool {
	return s.RequireFullscreen || s.PreventTabSwitching
}

// Quiz represents a quiz entity. AccessCode is required from students
// who need to recover a locked attempt; it is never sent to students.
type Quiz struct {
	ID            uuid.UUID    `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description,omitempty"`
	TeacherID     int          `json:"teacher_id"`
	ClassroomID   uuid.UUID    `json:"classroom_id"`
	AccessCode    string       `json:"access_code,omitempty"`
	Settings      QuizSettings `json:"settings"`
	Status        QuizStatus   `json:"status"`
	QuestionCount int          `json:"question_count,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// CreateQuizRequest is the payload for creating a quiz.
type CreateQuizRequest struct {
	Title       string       `json:"title" binding:"required,min=3,max=255"`
	Description string       `json:"description" binding:"omitempty,max=2000"`
	ClassroomID uuid.UUID    `json:"classroom_id" binding:"required"`
	AccessCode  string       `json:"access_code" binding:"omitempty,min=4,max=20"`
	Settings    QuizSettings `json:"settings"`
}

// UpdateQuizRequest is the payload for updating a DRAFT quiz.
type UpdateQuizRequest struct {
	Title       string        `json:"title" binding:"omitempty,min=3,max=255"`
	Description *string       `json:"description" binding:"omitempty,max=2000"`
	AccessCode  string        `json:"access_code" binding:"omitempty,min=4,max=20"`
	Settings    *QuizSettings `json:"settings" binding:"omitempty"`
}

// QuizPayload is the Redis-cached quiz sent to students. It carries no
// correct answers and no access code.
type QuizPayload struct {
	QuizID    uuid.UUID            `json:"quiz_id"`
	Title     string               `json:"title"`
	Settings  QuizSettings         `json:"settings"`
	Questions []QuestionForStudent `json:"questions"`
}
