package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/veriquiz/veriquiz-backend/internal/middleware"
	"github.com/veriquiz/veriquiz-backend/internal/model"
	"github.com/veriquiz/veriquiz-backend/internal/proctor"
	"github.com/veriquiz/veriquiz-backend/internal/repository"
	"github.com/veriquiz/veriquiz-backend/internal/response"
	"github.com/veriquiz/veriquiz-backend/internal/service"
	"github.com/veriquiz/veriquiz-backend/internal/validator"
)

// StudentPortalHandler serves the student lobby and attempt lifecycle
// endpoints. The live exam runs over the WebSocket stream; these routes
// cover everything around it (discovery, start, reload, history).
type StudentPortalHandler struct {
	attemptService   *service.AttemptService
	quizService      *service.QuizService
	classroomService *service.ClassroomService
	drafts           *repository.DraftRepository
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	attemptService *service.AttemptService,
	quizService *service.QuizService,
	classroomService *service.ClassroomService,
	drafts *repository.DraftRepository,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		attemptService:   attemptService,
		quizService:      quizService,
		classroomService: classroomService,
		drafts:           drafts,
	}
}

type startAttemptRequest struct {
	AccessCode string `json:"access_code" binding:"omitempty,max=64"`
}

// ListQuizzes godoc
// GET /api/v1/student/quizzes
// Lists published quizzes from the student's classrooms with attempt usage.
func (h *StudentPortalHandler) ListQuizzes(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizzes, err := h.attemptService.ListAvailable(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quizzes": quizzes})
}

// ListClassrooms godoc
// GET /api/v1/student/classrooms
func (h *StudentPortalHandler) ListClassrooms(c *gin.Context) {
	claims := middleware.GetClaims(c)

	classrooms, err := h.classroomService.ListByStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"classrooms": classrooms})
}

// StartAttempt godoc
// POST /api/v1/student/quizzes/:quiz_id/attempts
// Starts a new attempt or resumes the in-progress one. The access code,
// when the quiz has one, is verified against a fresh read.
func (h *StudentPortalHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req startAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), quizID, claims.UserID, req.AccessCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuizNotAvailable), errors.Is(err, service.ErrNotEnrolled):
			response.Fail(c, http.StatusNotFound, response.ErrQuizNotAvailable)
		case errors.Is(err, service.ErrInvalidAccessCode):
			response.Fail(c, http.StatusForbidden, response.ErrInvalidAccessCode)
		case errors.Is(err, service.ErrNoAttemptsRemaining):
			response.Fail(c, http.StatusConflict, response.ErrNoAttemptsRemaining)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"attempt": attempt})
}

// GetAttemptState godoc
// GET /api/v1/student/attempts/:attempt_id
// Returns the reconciled attempt state for a page reload: the quiz
// payload without correct answers, merged answers (stored draft wins per
// question), and the server-computed remaining time.
func (h *StudentPortalHandler) GetAttemptState(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	ctx := c.Request.Context()

	attempt, err := h.attemptService.GetOwned(ctx, attemptID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	payload, err := h.quizService.GetPayload(ctx, attempt.QuizID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	startedAt := attempt.StartedAt
	if instant, err := h.attemptService.StartInstant(ctx, attemptID); err == nil {
		startedAt = instant
	}

	serverAnswers, err := h.attemptService.Answers(ctx, attemptID)
	if err != nil {
		serverAnswers = map[string]string{}
	}

	timer := proctor.NewTimer(payload.Settings.TimeLimitMinutes, startedAt, time.Now())
	snap, err := h.drafts.Load(ctx, attemptID)
	if err != nil {
		snap = nil
	}
	answers, index := proctor.Merge(snap, serverAnswers, len(payload.Questions), timer)

	response.Success(c, http.StatusOK, gin.H{
		"quiz": payload,
		"state": model.AttemptState{
			AttemptID:        attempt.ID,
			QuizID:           attempt.QuizID,
			Status:           attempt.Status,
			StartedAt:        startedAt,
			RemainingSeconds: timer.Remaining(),
			Answers:          answers,
			QuestionIndex:    index,
			ViolationCount:   attempt.ViolationCount,
		},
	})
}

// History godoc
// GET /api/v1/student/attempts
// Lists the student's submitted attempts with scores.
func (h *StudentPortalHandler) History(c *gin.Context) {
	claims := middleware.GetClaims(c)

	results, err := h.attemptService.History(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": results})
}
