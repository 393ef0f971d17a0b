package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/veriquiz/veriquiz-backend/internal/config"
	"github.com/veriquiz/veriquiz-backend/internal/database"
	"github.com/veriquiz/veriquiz-backend/internal/handler"
	"github.com/veriquiz/veriquiz-backend/internal/logger"
	"github.com/veriquiz/veriquiz-backend/internal/repository"
	"github.com/veriquiz/veriquiz-backend/internal/router"
	"github.com/veriquiz/veriquiz-backend/internal/service"
	"github.com/veriquiz/veriquiz-backend/internal/validator"
	"github.com/veriquiz/veriquiz-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting VeriQuiz Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	classroomRepo := repository.NewClassroomRepository(pool)
	quizRepo := repository.NewQuizRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	violationRepo := repository.NewViolationRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool, rdb)
	draftRepo := repository.NewDraftRepository(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb, userRepo)
	userService := service.NewUserService(userRepo, authService)
	classroomService := service.NewClassroomService(classroomRepo, userRepo)
	quizService := service.NewQuizService(quizRepo, questionRepo, classroomRepo, rdb, log)
	attemptService := service.NewAttemptService(
		attemptRepo, violationRepo, quizRepo, classroomRepo, monitorRepo,
		quizService, rdb, log,
	)
	monitorService := service.NewMonitorService(monitorRepo, quizRepo, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService, userService),
		StudentPortal: handler.NewStudentPortalHandler(attemptService, quizService, classroomService, draftRepo),
		Quiz:          handler.NewQuizHandler(quizService, attemptService),
		Classroom:     handler.NewClassroomHandler(classroomService),
		UserMgmt:      handler.NewUserManagementHandler(userService, authService),
		Monitor:       handler.NewMonitorHandler(monitorService, log),
		WS:            handler.NewWSHandler(cfg, attemptService, quizService, draftRepo, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	answerWorker := worker.NewAnswerWorker(attemptRepo, rdb, log)
	violationWorker := worker.NewViolationWorker(violationRepo, attemptRepo, rdb, log)
	finalizeWorker := worker.NewFinalizeWorker(attemptRepo, rdb, log)

	go answerWorker.Start(workerCtx)
	go violationWorker.Start(workerCtx)
	go finalizeWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
