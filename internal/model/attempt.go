package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted  AttemptStatus = "SUBMITTED"
)

// SubmitReason records what triggered the submission funnel.
type SubmitReason string

const (
	SubmitReasonManual        SubmitReason = "manual"
	SubmitReasonTimeExpired   SubmitReason = "time_expired"
	SubmitReasonAutoViolation SubmitReason = "auto_violation"
	SubmitReasonTerminated    SubmitReason = "terminated"
)

// Attempt represents a student's run through a quiz.
type Attempt struct {
	ID             uuid.UUID     `json:"id"`
	QuizID         uuid.UUID     `json:"quiz_id"`
	StudentID      int           `json:"student_id"`
	Status         AttemptStatus `json:"status"`
	StartedAt      time.Time     `json:"started_at"`
	SubmittedAt    *time.Time    `json:"submitted_at,omitempty"`
	SubmitReason   SubmitReason  `json:"submit_reason,omitempty"`
	Score          *float64      `json:"score,omitempty"`
	MaxScore       *float64      `json:"max_score,omitempty"`
	ViolationCount int           `json:"violation_count"`
}

// Answer is a single question response within an attempt.
type Answer struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Value      string    `json:"value"`
	AnsweredAt time.Time `json:"answered_at"`
}

// SaveAnswerRequest is the payload for recording an answer.
type SaveAnswerRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Value      string    `json:"value" binding:"omitempty,max=10000"`
}

// AttemptState is the reconciled state returned when a student opens or
// resumes an attempt. RemainingSeconds is always computed server-side.
type AttemptState struct {
	AttemptID        uuid.UUID         `json:"attempt_id"`
	QuizID           uuid.UUID         `json:"quiz_id"`
	Status           AttemptStatus     `json:"status"`
	StartedAt        time.Time         `json:"started_at"`
	RemainingSeconds int               `json:"remaining_seconds"`
	Answers          map[string]string `json:"answers"`
	QuestionIndex    int               `json:"question_index"`
	ViolationCount   int               `json:"violation_count"`
	Locked           bool              `json:"locked"`
}

// AttemptResult summarizes a graded attempt for result endpoints.
type AttemptResult struct {
	AttemptID      uuid.UUID    `json:"attempt_id"`
	QuizID         uuid.UUID    `json:"quiz_id"`
	QuizTitle      string       `json:"quiz_title"`
	StudentID      int          `json:"student_id"`
	StudentName    string       `json:"student_name,omitempty"`
	Score          float64      `json:"score"`
	MaxScore       float64      `json:"max_score"`
	SubmitReason   SubmitReason `json:"submit_reason"`
	SubmittedAt    time.Time    `json:"submitted_at"`
	ViolationCount int          `json:"violation_count"`
}
