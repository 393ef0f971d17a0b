package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/veriquiz/veriquiz-backend/internal/middleware"
	"github.com/veriquiz/veriquiz-backend/internal/model"
	"github.com/veriquiz/veriquiz-backend/internal/response"
	"github.com/veriquiz/veriquiz-backend/internal/service"
	"github.com/veriquiz/veriquiz-backend/internal/validator"
)

// QuizHandler handles teacher quiz authoring and review endpoints.
type QuizHandler struct {
	quizService    *service.QuizService
	attemptService *service.AttemptService
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(quizService *service.QuizService, attemptService *service.AttemptService) *QuizHandler {
	return &QuizHandler{
		quizService:    quizService,
		attemptService: attemptService,
	}
}

func failQuizError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotQuizOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotQuizOwner)
	case errors.Is(err, service.ErrQuizNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrQuizNotDraft)
	case errors.Is(err, service.ErrQuizNotPublished):
		response.Fail(c, http.StatusConflict, response.ErrQuizNotPublished)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
	default:
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	}
}

// List godoc
// GET /api/v1/teacher/quizzes
func (h *QuizHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizzes, err := h.quizService.ListByTeacher(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quizzes": quizzes})
}

// Create godoc
// POST /api/v1/teacher/quizzes
func (h *QuizHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"quiz": quiz})
}

// Get godoc
// GET /api/v1/teacher/quizzes/:quiz_id
func (h *QuizHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	quiz, err := h.quizService.Get(c.Request.Context(), claims.UserID, quizID)
	if err != nil {
		failQuizError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// Update godoc
// PUT /api/v1/teacher/quizzes/:quiz_id
// Only draft quizzes can be edited.
func (h *QuizHandler) Update(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.Update(c.Request.Context(), claims.UserID, quizID, &req)
	if err != nil {
		failQuizError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// Delete godoc
// DELETE /api/v1/teacher/quizzes/:quiz_id
func (h *QuizHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.quizService.Delete(c.Request.Context(), claims.UserID, quizID); err != nil {
		failQuizError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Publish godoc
// POST /api/v1/teacher/quizzes/:quiz_id/publish
// Moves a draft quiz to PUBLISHED and warms the payload and answer-key
// caches so attempt starts never race a cold cache.
func (h *QuizHandler) Publish(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.quizService.Publish(c.Request.Context(), claims.UserID, quizID); err != nil {
		failQuizError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Close godoc
// POST /api/v1/teacher/quizzes/:quiz_id/close
func (h *QuizHandler) Close(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.quizService.Close(c.Request.Context(), claims.UserID, quizID); err != nil {
		failQuizError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ListQuestions godoc
// GET /api/v1/teacher/quizzes/:quiz_id/questions
func (h *QuizHandler) ListQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	questions, err := h.quizService.ListQuestions(c.Request.Context(), claims.UserID, quizID)
	if err != nil {
		failQuizError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// AddQuestion godoc
// POST /api/v1/teacher/quizzes/:quiz_id/questions
func (h *QuizHandler) AddQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.CreateQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.quizService.AddQuestion(c.Request.Context(), claims.UserID, quizID, &req)
	if err != nil {
		failQuizError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": question})
}

// UpdateQuestion godoc
// PUT /api/v1/teacher/quizzes/:quiz_id/questions/:question_id
func (h *QuizHandler) UpdateQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.quizService.UpdateQuestion(c.Request.Context(), claims.UserID, quizID, questionID, &req)
	if err != nil {
		failQuizError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": question})
}

// DeleteQuestion godoc
// DELETE /api/v1/teacher/quizzes/:quiz_id/questions/:question_id
func (h *QuizHandler) DeleteQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.quizService.DeleteQuestion(c.Request.Context(), claims.UserID, quizID, questionID); err != nil {
		failQuizError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Results godoc
// GET /api/v1/teacher/quizzes/:quiz_id/results
// Lists submitted attempts with scores and violation totals.
func (h *QuizHandler) Results(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	results, err := h.attemptService.Results(c.Request.Context(), claims.UserID, quizID)
	if err != nil {
		failQuizError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// AttemptViolations godoc
// GET /api/v1/teacher/attempts/:attempt_id/violations
// Full violation log for one attempt, including device info.
func (h *QuizHandler) AttemptViolations(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	violations, err := h.attemptService.Violations(c.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		failQuizError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"violations": violations})
}
