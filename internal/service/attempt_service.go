package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/veriquiz/veriquiz-backend/internal/config"
	"github.com/veriquiz/veriquiz-backend/internal/model"
	"github.com/veriquiz/veriquiz-backend/internal/proctor"
	"github.com/veriquiz/veriquiz-backend/internal/repository"
)

// Common attempt errors.
var (
	ErrQuizNotAvailable    = errors.New("quiz is not available")
	ErrNotEnrolled         = errors.New("student is not enrolled in the quiz's classroom")
	ErrInvalidAccessCode   = errors.New("invalid access code")
	ErrNoAttemptsRemaining = errors.New("no attempts remaining")
	ErrAttemptSubmitted    = errors.New("attempt already submitted")
	ErrNotAttemptOwner     = errors.New("attempt belongs to another student")
)

// AttemptService handles attempt lifecycle, answer flow, violation
// persistence, and grading. It implements proctor.Sink,
// proctor.CodeSource, and proctor.AttemptClient so exam sessions can be
// wired directly against it.
type AttemptService struct {
	attemptRepo   *repository.AttemptRepository
	violationRepo *repository.ViolationRepository
	quizRepo      *repository.QuizRepository
	classroomRepo *repository.ClassroomRepository
	monitorRepo   *repository.MonitorRepository
	quizService   *QuizService
	rdb           *redis.Client
	log           zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	violationRepo *repository.ViolationRepository,
	quizRepo *repository.QuizRepository,
	classroomRepo *repository.ClassroomRepository,
	monitorRepo *repository.MonitorRepository,
	quizService *QuizService,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptRepo:   attemptRepo,
		violationRepo: violationRepo,
		quizRepo:      quizRepo,
		classroomRepo: classroomRepo,
		monitorRepo:   monitorRepo,
		quizService:   quizService,
		rdb:           rdb,
		log:           log.With().Str("component", "attempt_service").Logger(),
	}
}

// LobbyQuiz is a quiz as shown in the student lobby, overlaid with the
// student's attempt usage.
type LobbyQuiz struct {
	model.Quiz
	AttemptsUsed  int  `json:"attempts_used"`
	HasInProgress bool `json:"has_in_progress"`
}

// ListAvailable returns published quizzes in the student's classrooms.
// Access codes are stripped before the list leaves the service.
func (s *AttemptService) ListAvailable(ctx context.Context, studentID int) ([]LobbyQuiz, error) {
	quizzes, err := s.quizRepo.ListPublishedForStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}

	lobby := make([]LobbyQuiz, 0, len(quizzes))
	for i := range quizzes {
		quizzes[i].AccessCode = ""

		used, err := s.attemptRepo.CountByQuizAndStudent(ctx, quizzes[i].ID, studentID)
		if err != nil {
			return nil, fmt.Errorf("count attempts: %w", err)
		}
		_, openErr := s.attemptRepo.GetInProgress(ctx, quizzes[i].ID, studentID)
		if openErr != nil && !errors.Is(openErr, pgx.ErrNoRows) {
			return nil, fmt.Errorf("check open attempt: %w", openErr)
		}

		lobby = append(lobby, LobbyQuiz{
			Quiz:          quizzes[i],
			AttemptsUsed:  used,
			HasInProgress: openErr == nil,
		})
	}
	return lobby, nil
}

// Start opens an attempt for a student. The access code gates entry;
// resuming an open attempt is idempotent and does not consume a new
// attempt. The server records the authoritative start instant.
func (s *AttemptService) Start(ctx context.Context, quizID uuid.UUID, studentID int, accessCode string) (*model.Attempt, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if quiz.Status != model.QuizStatusPublished {
		return nil, ErrQuizNotAvailable
	}

	enrolled, err := s.classroomRepo.IsStudentEnrolled(ctx, quiz.ClassroomID, studentID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, ErrNotEnrolled
	}

	if quiz.AccessCode != "" && !accessCodesMatch(accessCode, quiz.AccessCode) {
		return nil, ErrInvalidAccessCode
	}

	// Resume before counting: an open attempt is never a new one.
	existing, err := s.attemptRepo.GetInProgress(ctx, quizID, studentID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check open attempt: %w", err)
	}

	if quiz.Settings.AllowedAttempts > 0 {
		used, err := s.attemptRepo.CountByQuizAndStudent(ctx, quizID, studentID)
		if err != nil {
			return nil, fmt.Errorf("count attempts: %w", err)
		}
		if used >= quiz.Settings.AllowedAttempts {
			return nil, ErrNoAttemptsRemaining
		}
	}

	attempt := &model.Attempt{QuizID: quizID, StudentID: studentID}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	attempt.Status = model.AttemptStatusInProgress

	// Cache the start instant so state reads skip Postgres. The DB
	// value stays the source of truth; reads self-heal on a miss.
	startKey := config.CacheKey.AttemptStartKey(attempt.ID)
	if err := s.rdb.Set(ctx, startKey, attempt.StartedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Stringer("attempt_id", attempt.ID).Msg("failed to cache start time")
	}

	s.publishMonitorEvent(ctx, quizID, "attempt_started", map[string]any{
		"attempt_id": attempt.ID,
		"student_id": studentID,
	})

	return attempt, nil
}

// GetOwned fetches an attempt and verifies the student owns it.
func (s *AttemptService) GetOwned(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.StudentID != studentID {
		return nil, ErrNotAttemptOwner
	}
	return attempt, nil
}

// StartInstant returns the server-recorded start time for an attempt,
// from Redis with a Postgres fallback that self-heals the cache.
func (s *AttemptService) StartInstant(ctx context.Context, attemptID uuid.UUID) (time.Time, error) {
	startKey := config.CacheKey.AttemptStartKey(attemptID)

	val, err := s.rdb.Get(ctx, startKey).Int64()
	if err == nil {
		return time.Unix(val, 0), nil
	}
	if !errors.Is(err, redis.Nil) {
		return time.Time{}, fmt.Errorf("get start time: %w", err)
	}

	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return time.Time{}, fmt.Errorf("start time not in cache or db: %w", err)
	}

	_ = s.rdb.Set(ctx, startKey, attempt.StartedAt.Unix(), 0)
	return attempt.StartedAt, nil
}

// Answers returns the attempt's current answers, preferring the Redis
// hash and falling back to Postgres.
func (s *AttemptService) Answers(ctx context.Context, attemptID uuid.UUID) (map[string]string, error) {
	answers, err := s.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(attemptID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get cached answers: %w", err)
	}
	if len(answers) > 0 {
		return answers, nil
	}
	return s.attemptRepo.GetAnswers(ctx, attemptID)
}

// SaveAnswer records one answer: write-through to the Redis hash, then
// enqueue for batched Postgres persistence. Implements
// proctor.AttemptClient.
func (s *AttemptService) SaveAnswer(ctx context.Context, attemptID, questionID uuid.UUID, value string) error {
	if err := s.rdb.HSet(ctx, config.CacheKey.AttemptAnswersKey(attemptID), questionID.String(), value).Err(); err != nil {
		return fmt.Errorf("cache answer: %w", err)
	}

	item := model.AnswerQueueItem{
		AttemptID:  attemptID,
		QuestionID: questionID,
		Value:      value,
		AnsweredAt: time.Now(),
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode answer item: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue answer: %w", err)
	}
	return nil
}

// AppendViolation enqueues a violation for batched persistence and
// broadcasts it to monitors. Implements proctor.Sink.
func (s *AttemptService) AppendViolation(ctx context.Context, attemptID uuid.UUID, studentID int, rec proctor.Record) error {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return fmt.Errorf("get attempt: %w", err)
	}

	item := model.ViolationQueueItem{
		AttemptID:  attemptID,
		StudentID:  studentID,
		Kind:       string(rec.Kind),
		Detail:     rec.Detail,
		Device:     rec.Device,
		OccurredAt: rec.OccurredAt,
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode violation item: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue violation: %w", err)
	}

	s.publishMonitorEvent(ctx, attempt.QuizID, "violation", map[string]any{
		"attempt_id": attemptID,
		"student_id": studentID,
		"kind":       rec.Kind,
	})
	return nil
}

// QuizAccessCode returns the quiz's current access code. Implements
// proctor.CodeSource.
func (s *AttemptService) QuizAccessCode(ctx context.Context, quizID uuid.UUID) (string, error) {
	return s.quizService.GetAccessCode(ctx, quizID)
}

// SubmitAttempt grades the attempt in memory against the cached answer
// key and transitions it to SUBMITTED. Safe to call more than once;
// only the first transition grades and enqueues finalization.
// Implements proctor.AttemptClient.
func (s *AttemptService) SubmitAttempt(ctx context.Context, attemptID uuid.UUID, reason model.SubmitReason) error {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return fmt.Errorf("get attempt: %w", err)
	}
	if attempt.Status == model.AttemptStatusSubmitted {
		return nil
	}

	answerKey, err := s.quizService.GetAnswerKey(ctx, attempt.QuizID)
	if err != nil {
		return fmt.Errorf("get answer key: %w", err)
	}
	answers, err := s.Answers(ctx, attemptID)
	if err != nil {
		return fmt.Errorf("get answers: %w", err)
	}

	score, maxScore := grade(answerKey, answers)

	performed, err := s.attemptRepo.Submit(ctx, attemptID, reason, score, maxScore)
	if err != nil {
		return fmt.Errorf("submit attempt: %w", err)
	}
	if !performed {
		// Lost the race to a concurrent submitter; nothing left to do.
		return nil
	}

	item := model.FinalizeQueueItem{
		AttemptID: attemptID,
		QuizID:    attempt.QuizID,
		StudentID: attempt.StudentID,
	}
	payload, _ := json.Marshal(item)
	if err := s.rdb.RPush(ctx, config.WorkerKey.FinalizeAttemptsQueue, payload).Err(); err != nil {
		s.log.Error().Err(err).Stringer("attempt_id", attemptID).Msg("failed to enqueue finalize")
	}

	s.publishMonitorEvent(ctx, attempt.QuizID, "attempt_submitted", map[string]any{
		"attempt_id": attemptID,
		"student_id": attempt.StudentID,
		"reason":     reason,
		"score":      score,
		"max_score":  maxScore,
	})

	s.log.Info().
		Stringer("attempt_id", attemptID).
		Str("reason", string(reason)).
		Float64("score", score).
		Msg("attempt graded and submitted")
	return nil
}

// Results returns graded results for a quiz, for its owning teacher.
func (s *AttemptService) Results(ctx context.Context, teacherID int, quizID uuid.UUID) ([]model.AttemptResult, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if quiz.TeacherID != teacherID {
		return nil, ErrNotQuizOwner
	}
	return s.attemptRepo.ListResultsByQuiz(ctx, quizID)
}

// History returns the student's submitted attempts.
func (s *AttemptService) History(ctx context.Context, studentID int) ([]model.AttemptResult, error) {
	return s.attemptRepo.ListByStudent(ctx, studentID)
}

// Violations returns the recorded violations of an attempt for its
// quiz's owning teacher.
func (s *AttemptService) Violations(ctx context.Context, teacherID int, attemptID uuid.UUID) ([]model.ViolationRecord, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	quiz, err := s.quizRepo.GetByID(ctx, attempt.QuizID)
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if quiz.TeacherID != teacherID {
		return nil, ErrNotQuizOwner
	}
	return s.violationRepo.ListByAttempt(ctx, attemptID)
}

func (s *AttemptService) publishMonitorEvent(ctx context.Context, quizID uuid.UUID, eventType string, data map[string]any) {
	payload, err := json.Marshal(map[string]any{
		"type": eventType,
		"data": data,
		"at":   time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := s.monitorRepo.PublishEvent(ctx, quizID, payload); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("failed to publish monitor event")
	}
}

// grade scores answers against the key. Comparison is trimmed and
// case-insensitive, which covers short answers as well as option
// indexes and true/false values.
func grade(key map[string]AnswerKeyEntry, answers map[string]string) (score, maxScore float64) {
	for questionID, entry := range key {
		maxScore += float64(entry.Points)
		given, ok := answers[questionID]
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(entry.CorrectAnswer)) {
			score += float64(entry.Points)
		}
	}
	return score, maxScore
}

func accessCodesMatch(entered, actual string) bool {
	entered = strings.TrimSpace(entered)
	actual = strings.TrimSpace(actual)
	if entered == "" || actual == "" {
		return false
	}
	return strings.EqualFold(entered, actual)
}
