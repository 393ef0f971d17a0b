package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates supported question formats.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
)

// Question represents a quiz question with its grading key.
type Question struct {
	ID            uuid.UUID       `json:"id"`
	QuizID        uuid.UUID       `json:"quiz_id"`
	Type          QuestionType    `json:"type"`
	Text          string          `json:"text"`
	Options       json.RawMessage `json:"options,omitempty"`
	CorrectAnswer string          `json:"correct_answer,omitempty"`
	Points        int             `json:"points"`
	OrderNum      int             `json:"order_num"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// QuestionForStudent is a question stripped of its grading key.
type QuestionForStudent struct {
	ID       uuid.UUID       `json:"id"`
	Type     QuestionType    `json:"type"`
	Text     string          `json:"text"`
	Options  json.RawMessage `json:"options,omitempty"`
	Points   int             `json:"points"`
	OrderNum int             `json:"order_num"`
}

// ForStudent returns the student-safe view of the question.
func (q *Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:       q.ID,
		Type:     q.Type,
		Text:     q.Text,
		Options:  q.Options,
		Points:   q.Points,
		OrderNum: q.OrderNum,
	}
}

// CreateQuestionRequest is the payload for adding a question to a DRAFT quiz.
type CreateQuestionRequest struct {
	Type          QuestionType    `json:"type" binding:"required,oneof=multiple_choice true_false short_answer"`
	Text          string          `json:"text" binding:"required,min=1,max=5000"`
	Options       json.RawMessage `json:"options" binding:"omitempty"`
	CorrectAnswer string          `json:"correct_answer" binding:"required,min=1"`
	Points        int             `json:"points" binding:"required,min=1,max=100"`
	OrderNum      int             `json:"order_num" binding:"omitempty,min=0"`
}

// UpdateQuestionRequest is the payload for editing a question.
type UpdateQuestionRequest struct {
	Text          string          `json:"text" binding:"omitempty,min=1,max=5000"`
	Options       json.RawMessage `json:"options" binding:"omitempty"`
	CorrectAnswer string          `json:"correct_answer" binding:"omitempty,min=1"`
	Points        *int            `json:"points" binding:"omitempty,min=1,max=100"`
	OrderNum      *int            `json:"order_num" binding:"omitempty,min=0"`
}
