package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/veriquiz/veriquiz-backend/internal/config"
	"github.com/veriquiz/veriquiz-backend/internal/handler"
	"github.com/veriquiz/veriquiz-backend/internal/middleware"
	"github.com/veriquiz/veriquiz-backend/internal/model"
	"github.com/veriquiz/veriquiz-backend/internal/response"
	"github.com/veriquiz/veriquiz-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	Quiz          *handler.QuizHandler
	Classroom     *handler.ClassroomHandler
	UserMgmt      *handler.UserManagementHandler
	Monitor       *handler.MonitorHandler
	WS            *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/logout", middleware.RequireJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireJWT(authService),
		middleware.RequireRole(model.RoleStudent),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/quizzes", handlers.StudentPortal.ListQuizzes)
		studentAPI.GET("/classrooms", handlers.StudentPortal.ListClassrooms)
		studentAPI.POST("/quizzes/:quiz_id/attempts", handlers.StudentPortal.StartAttempt)
		studentAPI.GET("/attempts", handlers.StudentPortal.History)
		studentAPI.GET("/attempts/:attempt_id", handlers.StudentPortal.GetAttemptState)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 4. Teacher Group ──────────────────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(
		middleware.RequireJWT(authService),
		middleware.RequireRole(model.RoleTeacher),
	)
	{
		teacherAPI.GET("/quizzes", handlers.Quiz.List)
		teacherAPI.POST("/quizzes", handlers.Quiz.Create)
		teacherAPI.GET("/quizzes/:quiz_id", handlers.Quiz.Get)
		teacherAPI.PUT("/quizzes/:quiz_id", handlers.Quiz.Update)
		teacherAPI.DELETE("/quizzes/:quiz_id", handlers.Quiz.Delete)
		teacherAPI.POST("/quizzes/:quiz_id/publish", handlers.Quiz.Publish)
		teacherAPI.POST("/quizzes/:quiz_id/close", handlers.Quiz.Close)
		teacherAPI.GET("/quizzes/:quiz_id/questions", handlers.Quiz.ListQuestions)
		teacherAPI.POST("/quizzes/:quiz_id/questions", handlers.Quiz.AddQuestion)
		teacherAPI.PUT("/quizzes/:quiz_id/questions/:question_id", handlers.Quiz.UpdateQuestion)
		teacherAPI.DELETE("/quizzes/:quiz_id/questions/:question_id", handlers.Quiz.DeleteQuestion)
		teacherAPI.GET("/quizzes/:quiz_id/results", handlers.Quiz.Results)
		teacherAPI.GET("/quizzes/:quiz_id/monitor", handlers.Monitor.MonitorQuizSSE)
		teacherAPI.GET("/attempts/:attempt_id/violations", handlers.Quiz.AttemptViolations)

		teacherAPI.GET("/classrooms", handlers.Classroom.List)
		teacherAPI.POST("/classrooms", handlers.Classroom.Create)
		teacherAPI.GET("/classrooms/:classroom_id", handlers.Classroom.Get)
		teacherAPI.PUT("/classrooms/:classroom_id", handlers.Classroom.Update)
		teacherAPI.DELETE("/classrooms/:classroom_id", handlers.Classroom.Delete)
		teacherAPI.GET("/classrooms/:classroom_id/students", handlers.Classroom.ListStudents)
		teacherAPI.POST("/classrooms/:classroom_id/students", handlers.Classroom.EnrollStudents)
		teacherAPI.DELETE("/classrooms/:classroom_id/students/:student_id", handlers.Classroom.RemoveStudent)
	}

	// ─── 5. Admin Group ────────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireJWT(authService),
		middleware.RequireRole(model.RoleAdmin),
	)
	{
		adminAPI.GET("/users", handlers.UserMgmt.List)
		adminAPI.POST("/users", handlers.UserMgmt.Create)
		adminAPI.GET("/users/:user_id", handlers.UserMgmt.Get)
		adminAPI.PUT("/users/:user_id", handlers.UserMgmt.Update)
		adminAPI.DELETE("/users/:user_id", handlers.UserMgmt.Delete)
		adminAPI.POST("/users/:user_id/reset-session", handlers.UserMgmt.ResetSession)
	}

	return router
}
