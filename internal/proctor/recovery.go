package proctor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/veriquiz/veriquiz-backend/internal/model"
)

// ErrInvalidAccessCode is returned when the entered code does not match
// the quiz's current access code.
var ErrInvalidAccessCode = errors.New("invalid access code")

// CodeSource fetches a quiz's current access code. Recovery always
// verifies against a fresh fetch so a code rotated mid-attempt takes
// effect immediately.
type CodeSource interface {
	QuizAccessCode(ctx context.Context, quizID uuid.UUID) (string, error)
}

// RecoveryFlow verifies teacher-issued access codes to unlock a quiz
// after a fullscreen exit.
type RecoveryFlow struct {
	quizID  uuid.UUID
	source  CodeSource
	guard   *Guard
	tracker *Tracker
}

// NewRecoveryFlow wires recovery for one attempt.
func NewRecoveryFlow(quizID uuid.UUID, source CodeSource, guard *Guard, tracker *Tracker) *RecoveryFlow {
	return &RecoveryFlow{quizID: quizID, source: source, guard: guard, tracker: tracker}
}

// Verify checks the entered code. On match it re-engages the guard.
// On mismatch it records an INVALID_ACCESS_CODE violation and leaves
// guard state untouched. Comparison trims whitespace and ignores case.
func (f *RecoveryFlow) Verify(ctx context.Context, entered string, device model.DeviceInfo, at time.Time) error {
	current, err := f.source.QuizAccessCode(ctx, f.quizID)
	if err != nil {
		return fmt.Errorf("fetch access code: %w", err)
	}

	if !codesMatch(entered, current) {
		f.tracker.Record(ctx, KindInvalidAccessCode, "", device, at)
		return ErrInvalidAccessCode
	}

	f.guard.Recover()
	return nil
}

func codesMatch(entered, current string) bool {
	entered = strings.TrimSpace(entered)
	current = strings.TrimSpace(current)
	if entered == "" || current == "" {
		return false
	}
	return strings.EqualFold(entered, current)
}
