package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/veriquiz/veriquiz-backend/internal/config"
	"github.com/veriquiz/veriquiz-backend/internal/model"
	"github.com/veriquiz/veriquiz-backend/internal/repository"
)

// Common quiz errors.
var (
	ErrNotQuizOwner     = errors.New("not the quiz owner")
	ErrQuizNotDraft     = errors.New("quiz is not in DRAFT status")
	ErrQuizNotPublished = errors.New("quiz is not published")
	ErrNoQuestions      = errors.New("quiz has no questions")
)

// AnswerKeyEntry is one question's grading data, cached alongside the
// student payload at publish time so grading never rereads Postgres.
type AnswerKeyEntry struct {
	Type          model.QuestionType `json:"type"`
	CorrectAnswer string             `json:"correct_answer"`
	Points        int                `json:"points"`
}

// QuizService handles quiz authoring and lifecycle business logic.
type QuizService struct {
	quizRepo      *repository.QuizRepository
	questionRepo  *repository.QuestionRepository
	classroomRepo *repository.ClassroomRepository
	rdb           *redis.Client
	log           zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(
	quizRepo *repository.QuizRepository,
	questionRepo *repository.QuestionRepository,
	classroomRepo *repository.ClassroomRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *QuizService {
	return &QuizService{
		quizRepo:      quizRepo,
		questionRepo:  questionRepo,
		classroomRepo: classroomRepo,
		rdb:           rdb,
		log:           log.With().Str("component", "quiz_service").Logger(),
	}
}

// Create makes a new DRAFT quiz owned by the teacher.
func (s *QuizService) Create(ctx context.Context, teacherID int, req *model.CreateQuizRequest) (*model.Quiz, error) {
	classroom, err := s.classroomRepo.GetByID(ctx, req.ClassroomID)
	if err != nil {
		return nil, fmt.Errorf("get classroom: %w", err)
	}
	if classroom.TeacherID != teacherID {
		return nil, ErrNotQuizOwner
	}

	quiz := &model.Quiz{
		Title:       req.Title,
		Description: req.Description,
		TeacherID:   teacherID,
		ClassroomID: req.ClassroomID,
		AccessCode:  req.AccessCode,
		Settings:    req.Settings,
	}
	if err := s.quizRepo.Create(ctx, quiz); err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}
	quiz.Status = model.QuizStatusDraft
	return quiz, nil
}

// Update modifies a DRAFT quiz owned by the teacher.
func (s *QuizService) Update(ctx context.Context, teacherID int, quizID uuid.UUID, req *model.UpdateQuizRequest) (*model.Quiz, error) {
	quiz, err := s.getOwned(ctx, teacherID, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.Status != model.QuizStatusDraft {
		return nil, ErrQuizNotDraft
	}

	if req.Title != "" {
		quiz.Title = req.Title
	}
	if req.Description != nil {
		quiz.Description = *req.Description
	}
	if req.AccessCode != "" {
		quiz.AccessCode = req.AccessCode
	}
	if req.Settings != nil {
		quiz.Settings = *req.Settings
	}

	if err := s.quizRepo.Update(ctx, quiz); err != nil {
		return nil, fmt.Errorf("update quiz: %w", err)
	}
	return quiz, nil
}

// Publish transitions a DRAFT quiz to PUBLISHED and warms the Redis
// caches: the student payload (no answers) and the answer key used for
// in-memory grading at submit time.
func (s *QuizService) Publish(ctx context.Context, teacherID int, quizID uuid.UUID) error {
	quiz, err := s.getOwned(ctx, teacherID, quizID)
	if err != nil {
		return err
	}
	if quiz.Status != model.QuizStatusDraft {
		return ErrQuizNotDraft
	}

	questions, err := s.questionRepo.ListByQuiz(ctx, quizID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	if err := s.warmCaches(ctx, quiz, questions); err != nil {
		// The caches self-heal on first read; publishing proceeds.
		s.log.Error().Err(err).Stringer("quiz_id", quizID).Msg("failed to warm quiz caches")
	}

	if err := s.quizRepo.UpdateStatus(ctx, quizID, model.QuizStatusPublished); err != nil {
		return fmt.Errorf("publish quiz: %w", err)
	}
	return nil
}

// Close transitions a PUBLISHED quiz to CLOSED and drops its caches.
func (s *QuizService) Close(ctx context.Context, teacherID int, quizID uuid.UUID) error {
	quiz, err := s.getOwned(ctx, teacherID, quizID)
	if err != nil {
		return err
	}
	if quiz.Status != model.QuizStatusPublished {
		return ErrQuizNotPublished
	}

	if err := s.quizRepo.UpdateStatus(ctx, quizID, model.QuizStatusClosed); err != nil {
		return fmt.Errorf("close quiz: %w", err)
	}

	s.rdb.Del(ctx,
		config.CacheKey.QuizPayloadKey(quizID),
		config.CacheKey.QuizAnswerKeyKey(quizID),
		config.CacheKey.QuizAccessCodeKey(quizID))
	return nil
}

// Delete removes a DRAFT quiz.
func (s *QuizService) Delete(ctx context.Context, teacherID int, quizID uuid.UUID) error {
	quiz, err := s.getOwned(ctx, teacherID, quizID)
	if err != nil {
		return err
	}
	if quiz.Status != model.QuizStatusDraft {
		return ErrQuizNotDraft
	}
	return s.quizRepo.Delete(ctx, quizID)
}

// Get retrieves a quiz owned by the teacher.
func (s *QuizService) Get(ctx context.Context, teacherID int, quizID uuid.UUID) (*model.Quiz, error) {
	return s.getOwned(ctx, teacherID, quizID)
}

// ListByTeacher retrieves the teacher's quizzes.
func (s *QuizService) ListByTeacher(ctx context.Context, teacherID int) ([]model.Quiz, error) {
	return s.quizRepo.ListByTeacher(ctx, teacherID)
}

// AddQuestion appends a question to a DRAFT quiz.
func (s *QuizService) AddQuestion(ctx context.Context, teacherID int, quizID uuid.UUID, req *model.CreateQuestionRequest) (*model.Question, error) {
	quiz, err := s.getOwned(ctx, teacherID, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.Status != model.QuizStatusDraft {
		return nil, ErrQuizNotDraft
	}

	orderNum := req.OrderNum
	if orderNum == 0 {
		count, err := s.questionRepo.CountByQuiz(ctx, quizID)
		if err != nil {
			return nil, fmt.Errorf("count questions: %w", err)
		}
		orderNum = count + 1
	}

	question := &model.Question{
		QuizID:        quizID,
		Type:          req.Type,
		Text:          req.Text,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Points:        req.Points,
		OrderNum:      orderNum,
	}
	if err := s.questionRepo.Create(ctx, question); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return question, nil
}

// UpdateQuestion edits a question on a DRAFT quiz.
func (s *QuizService) UpdateQuestion(ctx context.Context, teacherID int, quizID, questionID uuid.UUID, req *model.UpdateQuestionRequest) (*model.Question, error) {
	quiz, err := s.getOwned(ctx, teacherID, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.Status != model.QuizStatusDraft {
		return nil, ErrQuizNotDraft
	}

	question, err := s.questionRepo.GetByID(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	if question.QuizID != quizID {
		return nil, ErrNotQuizOwner
	}

	if req.Text != "" {
		question.Text = req.Text
	}
	if req.Options != nil {
		question.Options = req.Options
	}
	if req.CorrectAnswer != "" {
		question.CorrectAnswer = req.CorrectAnswer
	}
	if req.Points != nil {
		question.Points = *req.Points
	}
	if req.OrderNum != nil {
		question.OrderNum = *req.OrderNum
	}

	if err := s.questionRepo.Update(ctx, question); err != nil {
		return nil, fmt.Errorf("update question: %w", err)
	}
	return question, nil
}

// DeleteQuestion removes a question from a DRAFT quiz.
func (s *QuizService) DeleteQuestion(ctx context.Context, teacherID int, quizID, questionID uuid.UUID) error {
	quiz, err := s.getOwned(ctx, teacherID, quizID)
	if err != nil {
		return err
	}
	if quiz.Status != model.QuizStatusDraft {
		return ErrQuizNotDraft
	}

	question, err := s.questionRepo.GetByID(ctx, questionID)
	if err != nil {
		return fmt.Errorf("get question: %w", err)
	}
	if question.QuizID != quizID {
		return ErrNotQuizOwner
	}
	return s.questionRepo.Delete(ctx, questionID)
}

// ListQuestions retrieves all questions (with answers) for the owner.
func (s *QuizService) ListQuestions(ctx context.Context, teacherID int, quizID uuid.UUID) ([]model.Question, error) {
	if _, err := s.getOwned(ctx, teacherID, quizID); err != nil {
		return nil, err
	}
	return s.questionRepo.ListByQuiz(ctx, quizID)
}

// GetPayload returns the student-safe quiz payload from Redis, falling
// back to Postgres and self-healing the cache on a miss.
func (s *QuizService) GetPayload(ctx context.Context, quizID uuid.UUID) (*model.QuizPayload, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.QuizPayloadKey(quizID)).Bytes()
	if err == nil {
		payload := &model.QuizPayload{}
		if err := json.Unmarshal(data, payload); err == nil {
			return payload, nil
		}
		// Corrupt cache entry falls through to the rebuild below.
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get quiz payload: %w", err)
	}

	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	questions, err := s.questionRepo.ListByQuiz(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	if err := s.warmCaches(ctx, quiz, questions); err != nil {
		s.log.Error().Err(err).Stringer("quiz_id", quizID).Msg("failed to self-heal quiz caches")
	}

	return buildPayload(quiz, questions), nil
}

// GetAnswerKey returns the grading key from Redis, falling back to
// Postgres on a miss.
func (s *QuizService) GetAnswerKey(ctx context.Context, quizID uuid.UUID) (map[string]AnswerKeyEntry, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.QuizAnswerKeyKey(quizID)).Bytes()
	if err == nil {
		key := make(map[string]AnswerKeyEntry)
		if err := json.Unmarshal(data, &key); err == nil {
			return key, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get answer key: %w", err)
	}

	questions, err := s.questionRepo.ListByQuiz(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return buildAnswerKey(questions), nil
}

// GetAccessCode returns the quiz's current access code from Postgres.
// Always a fresh read so a rotated code takes effect immediately.
func (s *QuizService) GetAccessCode(ctx context.Context, quizID uuid.UUID) (string, error) {
	return s.quizRepo.GetAccessCode(ctx, quizID)
}

func (s *QuizService) getOwned(ctx context.Context, teacherID int, quizID uuid.UUID) (*model.Quiz, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if quiz.TeacherID != teacherID {
		return nil, ErrNotQuizOwner
	}
	return quiz, nil
}

func (s *QuizService) warmCaches(ctx context.Context, quiz *model.Quiz, questions []model.Question) error {
	payload, err := json.Marshal(buildPayload(quiz, questions))
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	answerKey, err := json.Marshal(buildAnswerKey(questions))
	if err != nil {
		return fmt.Errorf("encode answer key: %w", err)
	}

	if err := s.rdb.Set(ctx, config.CacheKey.QuizPayloadKey(quiz.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("cache payload: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.QuizAnswerKeyKey(quiz.ID), answerKey, 0).Err(); err != nil {
		return fmt.Errorf("cache answer key: %w", err)
	}
	return nil
}

func buildPayload(quiz *model.Quiz, questions []model.Question) *model.QuizPayload {
	payload := &model.QuizPayload{
		QuizID:    quiz.ID,
		Title:     quiz.Title,
		Settings:  quiz.Settings,
		Questions: make([]model.QuestionForStudent, 0, len(questions)),
	}
	for i := range questions {
		payload.Questions = append(payload.Questions, questions[i].ForStudent())
	}
	return payload
}

func buildAnswerKey(questions []model.Question) map[string]AnswerKeyEntry {
	key := make(map[string]AnswerKeyEntry, len(questions))
	for _, q := range questions {
		key[q.ID.String()] = AnswerKeyEntry{
			Type:          q.Type,
			CorrectAnswer: q.CorrectAnswer,
			Points:        q.Points,
		}
	}
	return key
}
