package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerQueueItem is the payload pushed to the answer persistence queue
// on every answer save.
type AnswerQueueItem struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Value      string    `json:"value"`
	AnsweredAt time.Time `json:"answered_at"`
}

// ViolationQueueItem is the payload pushed to the violation persistence
// queue for every detected violation.
type ViolationQueueItem struct {
	AttemptID  uuid.UUID  `json:"attempt_id"`
	StudentID  int        `json:"student_id"`
	Kind       string     `json:"kind"`
	Detail     string     `json:"detail,omitempty"`
	Device     DeviceInfo `json:"device"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// FinalizeQueueItem is the payload pushed to the finalize queue when an
// attempt is submitted; the worker flushes remaining Redis state to
// Postgres and drops the attempt's cache keys.
type FinalizeQueueItem struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	QuizID    uuid.UUID `json:"quiz_id"`
	StudentID int       `json:"student_id"`
}
