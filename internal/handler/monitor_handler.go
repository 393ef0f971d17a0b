package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/veriquiz/veriquiz-backend/internal/middleware"
	"github.com/veriquiz/veriquiz-backend/internal/response"
	"github.com/veriquiz/veriquiz-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams live quiz progress to teachers over SSE.
type MonitorHandler struct {
	monitorService *service.MonitorService
	log            zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(monitorService *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorQuizSSE godoc
// GET /api/v1/teacher/quizzes/:quiz_id/monitor
// Sends an initial snapshot, then forwards live events from the quiz's
// pub/sub channel with periodic snapshot refreshes and keep-alives.
func (h *MonitorHandler) MonitorQuizSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()

	pubsub, err := h.monitorService.Stream(reqCtx, claims.UserID, quizID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotQuizOwner):
			response.Fail(c, http.StatusForbidden, response.ErrNotQuizOwner)
		case errors.Is(err, service.ErrQuizNotPublished):
			response.Fail(c, http.StatusConflict, response.ErrQuizNotPublished)
		default:
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		}
		return
	}
	defer pubsub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c, reqCtx, claims.UserID, quizID)

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Stringer("quiz_id", quizID).Int("teacher_id", claims.UserID).Msg("teacher attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Stringer("quiz_id", quizID).Msg("teacher disconnected from live monitor SSE")
			return

		case msg := <-ch:
			// Events are published as JSON, forward verbatim.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-refreshTicker.C:
			h.sendSnapshot(c, reqCtx, claims.UserID, quizID)

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) sendSnapshot(c *gin.Context, parentCtx context.Context, teacherID int, quizID uuid.UUID) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	snapshot, err := h.monitorService.Snapshot(ctx, teacherID, quizID)
	if err != nil {
		h.log.Warn().Err(err).Stringer("quiz_id", quizID).Msg("failed to build monitor snapshot")
		return
	}

	c.SSEvent("message", map[string]interface{}{
		"type": "snapshot",
		"data": snapshot,
	})
	c.Writer.Flush()
}
