package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/veriquiz/veriquiz-backend/internal/middleware"
	"github.com/veriquiz/veriquiz-backend/internal/model"
	"github.com/veriquiz/veriquiz-backend/internal/response"
	"github.com/veriquiz/veriquiz-backend/internal/service"
	"github.com/veriquiz/veriquiz-backend/internal/validator"
)

// ClassroomHandler handles teacher classroom and enrollment endpoints.
type ClassroomHandler struct {
	classroomService *service.ClassroomService
}

// NewClassroomHandler creates a new ClassroomHandler.
func NewClassroomHandler(classroomService *service.ClassroomService) *ClassroomHandler {
	return &ClassroomHandler{classroomService: classroomService}
}

func failClassroomError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotClassroomOwner) {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}
	response.Fail(c, http.StatusNotFound, response.ErrNotFound)
}

// List godoc
// GET /api/v1/teacher/classrooms
func (h *ClassroomHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)

	classrooms, err := h.classroomService.ListByTeacher(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"classrooms": classrooms})
}

// Create godoc
// POST /api/v1/teacher/classrooms
func (h *ClassroomHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateClassroomRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	classroom, err := h.classroomService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"classroom": classroom})
}

// Get godoc
// GET /api/v1/teacher/classrooms/:classroom_id
func (h *ClassroomHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)

	classroomID, err := uuid.Parse(c.Param("classroom_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	classroom, err := h.classroomService.Get(c.Request.Context(), claims.UserID, classroomID)
	if err != nil {
		failClassroomError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"classroom": classroom})
}

// Update godoc
// PUT /api/v1/teacher/classrooms/:classroom_id
func (h *ClassroomHandler) Update(c *gin.Context) {
	claims := middleware.GetClaims(c)

	classroomID, err := uuid.Parse(c.Param("classroom_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateClassroomRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	classroom, err := h.classroomService.Update(c.Request.Context(), claims.UserID, classroomID, &req)
	if err != nil {
		failClassroomError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"classroom": classroom})
}

// Delete godoc
// DELETE /api/v1/teacher/classrooms/:classroom_id
func (h *ClassroomHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)

	classroomID, err := uuid.Parse(c.Param("classroom_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.classroomService.Delete(c.Request.Context(), claims.UserID, classroomID); err != nil {
		failClassroomError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ListStudents godoc
// GET /api/v1/teacher/classrooms/:classroom_id/students
func (h *ClassroomHandler) ListStudents(c *gin.Context) {
	claims := middleware.GetClaims(c)

	classroomID, err := uuid.Parse(c.Param("classroom_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	students, err := h.classroomService.ListStudents(c.Request.Context(), claims.UserID, classroomID)
	if err != nil {
		failClassroomError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"students": students})
}

// EnrollStudents godoc
// POST /api/v1/teacher/classrooms/:classroom_id/students
// Enrolls a batch of students. Every ID must belong to a student account.
func (h *ClassroomHandler) EnrollStudents(c *gin.Context) {
	claims := middleware.GetClaims(c)

	classroomID, err := uuid.Parse(c.Param("classroom_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.EnrollStudentsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.classroomService.EnrollStudents(c.Request.Context(), claims.UserID, classroomID, req.StudentIDs); err != nil {
		if errors.Is(err, service.ErrNotClassroomOwner) {
			response.Fail(c, http.StatusForbidden, response.ErrForbidden)
			return
		}
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// RemoveStudent godoc
// DELETE /api/v1/teacher/classrooms/:classroom_id/students/:student_id
func (h *ClassroomHandler) RemoveStudent(c *gin.Context) {
	claims := middleware.GetClaims(c)

	classroomID, err := uuid.Parse(c.Param("classroom_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	studentID, err := strconv.Atoi(c.Param("student_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.classroomService.RemoveStudent(c.Request.Context(), claims.UserID, classroomID, studentID); err != nil {
		failClassroomError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
