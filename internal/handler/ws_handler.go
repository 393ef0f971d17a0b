package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/veriquiz/veriquiz-backend/internal/config"
	"github.com/veriquiz/veriquiz-backend/internal/middleware"
	"github.com/veriquiz/veriquiz-backend/internal/model"
	"github.com/veriquiz/veriquiz-backend/internal/proctor"
	"github.com/veriquiz/veriquiz-backend/internal/repository"
	"github.com/veriquiz/veriquiz-backend/internal/service"
	ws "github.com/veriquiz/veriquiz-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allow-list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler runs the proctored exam stream. Each connection owns one
// exam session: integrity events flow in, warnings and the countdown
// flow out, and every state mutation happens on the session goroutine.
type WSHandler struct {
	cfg            *config.Config
	attemptService *service.AttemptService
	quizService    *service.QuizService
	drafts         *repository.DraftRepository
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	cfg *config.Config,
	attemptService *service.AttemptService,
	quizService *service.QuizService,
	drafts *repository.DraftRepository,
	log zerolog.Logger,
) *WSHandler {
	return &WSHandler{
		cfg:            cfg,
		attemptService: attemptService,
		quizService:    quizService,
		drafts:         drafts,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(cfg.AllowedOrigins),
	}
}

// wsNotifier bridges proctor.Notifier onto the WebSocket connection.
type wsNotifier struct {
	conn *ws.Conn
}

func (n *wsNotifier) ViolationWarning(kind proctor.Kind, total int, severity proctor.Severity) {
	_ = n.conn.WriteTyped(ws.WarningResponse{
		Event:    ws.EventWarning,
		Kind:     string(kind),
		Total:    total,
		Severity: severity.String(),
	})
}

func (n *wsNotifier) Lockdown(exitCount int) {
	_ = n.conn.WriteTyped(ws.LockdownResponse{
		Event:     ws.EventLockdown,
		ExitCount: exitCount,
		MaxExits:  proctor.MaxExitAttempts,
	})
}

func (n *wsNotifier) Terminated(reason string) {
	_ = n.conn.WriteTyped(ws.TerminatedResponse{Event: ws.EventTerminated, Reason: reason})
}

func (n *wsNotifier) TimeSync(remaining int) {
	_ = n.conn.WriteTyped(ws.TimeSyncResponse{Event: ws.EventTimeSync, Remaining: remaining})
}

func (n *wsNotifier) Submitted(reason model.SubmitReason) {
	_ = n.conn.WriteTyped(ws.SubmittedResponse{Event: ws.EventSubmitted, Reason: string(reason)})
}

func (n *wsNotifier) SaveFailed(questionID uuid.UUID) {
	_ = n.conn.WriteTyped(ws.SaveFailedResponse{Event: ws.EventSaveFailed, QID: questionID.String()})
}

func (n *wsNotifier) SubmitFailed() {
	_ = n.conn.WriteTyped(ws.SubmitFailedResponse{Event: ws.EventSubmitFailed})
}

// AttemptStream godoc
// WS /ws/v1/student/attempts/:attempt_id/stream?token=...
// Upgrades to WebSocket and drives the proctored exam session.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	ctx := c.Request.Context()

	attempt, err := h.attemptService.GetOwned(ctx, attemptID, claims.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "attempt not found"})
		return
	}

	payload, err := h.quizService.GetPayload(ctx, attempt.QuizID)
	if err != nil {
		h.log.Error().Err(err).Stringer("quiz_id", attempt.QuizID).Msg("failed to load quiz payload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quiz unavailable"})
		return
	}

	serverAnswers, err := h.attemptService.Answers(ctx, attemptID)
	if err != nil {
		h.log.Error().Err(err).Stringer("attempt_id", attemptID).Msg("failed to load answers")
		serverAnswers = map[string]string{}
	}

	// Reconcile against the server-recorded start instant, never the
	// attempt row alone; the cache self-heals through StartInstant.
	startedAt, err := h.attemptService.StartInstant(ctx, attemptID)
	if err == nil {
		attempt.StartedAt = startedAt
	}

	rawConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(rawConn)
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Stringer("attempt_id", attemptID).
		Logger()

	sessionCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := proctor.NewSession(sessionCtx, proctor.SessionConfig{
		Attempt:       attempt,
		Settings:      payload.Settings,
		QuestionCount: len(payload.Questions),
		ServerAnswers: serverAnswers,
		Drafts:        h.drafts,
		Sink:          h.attemptService,
		Codes:         h.attemptService,
		Client:        h.attemptService,
		Notifier:      &wsNotifier{conn: conn},
		Logger:        h.log,
	})
	if err != nil {
		if errors.Is(err, proctor.ErrAttemptNotResumable) {
			conn.WriteError("attempt is not in progress")
		} else {
			wsLog.Error().Err(err).Msg("failed to build session")
			conn.WriteError("session unavailable")
		}
		return
	}

	if err := conn.WriteTyped(ws.StateResponse{Event: ws.EventState, State: session.InitialState()}); err != nil {
		wsLog.Warn().Err(err).Msg("failed to send initial state")
		return
	}

	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		if err := session.Run(sessionCtx); err != nil && !errors.Is(err, context.Canceled) {
			wsLog.Error().Err(err).Msg("session ended with error")
		}
	}()

	// After submission, hold the connection briefly so the client can
	// show the result before we hang up.
	go func() {
		select {
		case <-sessionDone:
			time.Sleep(time.Duration(h.cfg.SubmitGraceSeconds) * time.Second)
			conn.Close()
		case <-sessionCtx.Done():
		}
	}()

	wsLog.Info().Msg("student connected")
	h.readLoop(conn, session, wsLog)
	wsLog.Info().Msg("student disconnected")
}

func (h *WSHandler) readLoop(conn *ws.Conn, session *proctor.Session, wsLog zerolog.Logger) {
	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("unexpected close")
			}
			return
		}

		if err := h.dispatch(conn, session, &msg); err != nil {
			if errors.Is(err, proctor.ErrSessionClosed) {
				return
			}
			conn.WriteError(err.Error())
		}
	}
}

func (h *WSHandler) dispatch(conn *ws.Conn, session *proctor.Session, msg *ws.RequestPayload) error {
	switch msg.Action {
	case ws.ActionAnswer:
		qid, err := uuid.Parse(msg.QID)
		if err != nil {
			return errors.New("invalid q_id format")
		}
		return session.SaveAnswer(qid, msg.Value)

	case ws.ActionNavigate:
		return session.Navigate(msg.Index)

	case ws.ActionViolation:
		return session.ReportViolation(proctor.Kind(msg.Kind), msg.Detail, msg.Device)

	case ws.ActionFullscreenExit:
		return session.ReportFullscreenExit(msg.Device)

	case ws.ActionRecover:
		verifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := session.VerifyAccessCode(verifyCtx, msg.Code, msg.Device); err != nil {
			if errors.Is(err, proctor.ErrInvalidAccessCode) {
				return errors.New("invalid access code")
			}
			return err
		}
		return conn.WriteTyped(ws.RecoveredResponse{Event: ws.EventRecovered})

	case ws.ActionSubmit:
		return session.RequestSubmit()

	case ws.ActionPing:
		return conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})

	default:
		return errors.New("unknown action: " + string(msg.Action))
	}
}
