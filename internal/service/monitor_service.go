package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/veriquiz/veriquiz-backend/internal/model"
	"github.com/veriquiz/veriquiz-backend/internal/repository"
)

// MonitorSnapshot is the initial state sent to a teacher opening the
// live monitor for a quiz.
type MonitorSnapshot struct {
	QuizID         uuid.UUID        `json:"quiz_id"`
	ActiveStudents []StudentMonitor `json:"active_students"`
}

// StudentMonitor is one student's live progress row.
type StudentMonitor struct {
	StudentID      int   `json:"student_id"`
	AnsweredCount  int64 `json:"answered_count"`
	ViolationCount int64 `json:"violation_count"`
}

// MonitorService provides live quiz monitoring for teachers: an initial
// snapshot from Postgres plus a Redis pub/sub stream of live events.
type MonitorService struct {
	monitorRepo *repository.MonitorRepository
	quizRepo    *repository.QuizRepository
	log         zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(monitorRepo *repository.MonitorRepository, quizRepo *repository.QuizRepository, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		monitorRepo: monitorRepo,
		quizRepo:    quizRepo,
		log:         log.With().Str("component", "monitor_service").Logger(),
	}
}

// Snapshot builds the current monitoring state for a quiz the teacher owns.
func (s *MonitorService) Snapshot(ctx context.Context, teacherID int, quizID uuid.UUID) (*MonitorSnapshot, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if quiz.TeacherID != teacherID {
		return nil, ErrNotQuizOwner
	}

	studentIDs, err := s.monitorRepo.GetInProgressStudentIDs(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("get active students: %w", err)
	}
	answered, err := s.monitorRepo.GetAnsweredCounts(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("get answered counts: %w", err)
	}
	violations, err := s.monitorRepo.GetViolationCounts(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("get violation counts: %w", err)
	}

	snapshot := &MonitorSnapshot{QuizID: quizID, ActiveStudents: make([]StudentMonitor, 0, len(studentIDs))}
	for _, sid := range studentIDs {
		snapshot.ActiveStudents = append(snapshot.ActiveStudents, StudentMonitor{
			StudentID:      sid,
			AnsweredCount:  answered[sid],
			ViolationCount: violations[sid],
		})
	}
	return snapshot, nil
}

// Stream subscribes to a quiz's live event channel after verifying
// ownership. The caller must close the returned PubSub.
func (s *MonitorService) Stream(ctx context.Context, teacherID int, quizID uuid.UUID) (*redis.PubSub, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if quiz.TeacherID != teacherID {
		return nil, ErrNotQuizOwner
	}
	if quiz.Status != model.QuizStatusPublished {
		return nil, ErrQuizNotPublished
	}
	return s.monitorRepo.Subscribe(ctx, quizID), nil
}
