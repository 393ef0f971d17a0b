package proctor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/veriquiz/veriquiz-backend/internal/model"
)

// ErrAttemptNotResumable is returned when a session is opened for an
// attempt that is no longer in progress.
var ErrAttemptNotResumable = errors.New("attempt is not in progress")

// ErrSessionClosed is returned by enqueue methods after Run has exited.
var ErrSessionClosed = errors.New("session closed")

// AttemptClient performs the remote attempt operations the session
// depends on.
type AttemptClient interface {
	SaveAnswer(ctx context.Context, attemptID, questionID uuid.UUID, value string) error
	SubmitAttempt(ctx context.Context, attemptID uuid.UUID, reason model.SubmitReason) error
}

// Notifier carries session outcomes back to the student's client.
// Called from the session goroutine; implementations must not block
// for long.
type Notifier interface {
	ViolationWarning(kind Kind, total int, severity Severity)
	Lockdown(exitCount int)
	Terminated(reason string)
	TimeSync(remainingSeconds int)
	Submitted(reason model.SubmitReason)
	SaveFailed(questionID uuid.UUID)
	SubmitFailed()
}

// SessionConfig wires one exam session.
type SessionConfig struct {
	Attempt       *model.Attempt
	Settings      model.QuizSettings
	QuestionCount int
	ServerAnswers map[string]string

	Drafts   Store
	Sink     Sink
	Codes    CodeSource
	Client   AttemptClient
	Notifier Notifier
	Logger   zerolog.Logger

	// Clock defaults to time.Now; overridden in tests.
	Clock func() time.Time
	// TickInterval defaults to one second; shortened in tests.
	TickInterval time.Duration
}

// Session owns all mutable proctoring state for one attempt. Every
// mutation flows through a single goroutine consuming typed events and
// a periodic tick, so no locking is needed anywhere in this package.
type Session struct {
	cfg   SessionConfig
	clock func() time.Time
	log   zerolog.Logger

	tracker  *Tracker
	guard    *Guard
	recovery *RecoveryFlow
	timer    *Timer

	answers       map[string]string
	questionIndex int
	submitting    bool
	submitted     bool

	events chan event
	done   chan struct{}
}

type event interface{ isEvent() }

type violationEvent struct {
	kind   Kind
	detail string
	device model.DeviceInfo
}

type fullscreenExitEvent struct {
	device model.DeviceInfo
}

type recoverEvent struct {
	code   string
	device model.DeviceInfo
	reply  chan error
}

type answerEvent struct {
	questionID uuid.UUID
	value      string
}

type navigateEvent struct {
	index int
}

type submitEvent struct{}

func (violationEvent) isEvent()      {}
func (fullscreenExitEvent) isEvent() {}
func (recoverEvent) isEvent()        {}
func (answerEvent) isEvent()         {}
func (navigateEvent) isEvent()       {}
func (submitEvent) isEvent()         {}

// NewSession builds the session for an in-progress attempt: it
// reconciles the timer against the server start instant, restores any
// draft snapshot, and arms the tracker and guard. Run must be called
// to start processing.
func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if cfg.Attempt == nil || cfg.Attempt.Status != model.AttemptStatusInProgress {
		return nil, ErrAttemptNotResumable
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}

	s := &Session{
		cfg:    cfg,
		clock:  cfg.Clock,
		log:    cfg.Logger.With().Str("component", "exam_session").Stringer("attempt_id", cfg.Attempt.ID).Logger(),
		events: make(chan event, 64),
		done:   make(chan struct{}),
	}

	s.timer = NewTimer(cfg.Settings.TimeLimitMinutes, cfg.Attempt.StartedAt, s.clock())

	snap, err := cfg.Drafts.Load(ctx, cfg.Attempt.ID)
	if err != nil {
		// A broken draft store must not block the exam.
		s.log.Error().Err(err).Msg("failed to load draft snapshot")
		snap = nil
	}
	s.answers, s.questionIndex = Merge(snap, cfg.ServerAnswers, cfg.QuestionCount, s.timer)

	s.tracker = NewTracker(cfg.Attempt.ID, cfg.Attempt.StudentID, cfg.Sink, s.onEscalate, cfg.Logger)
	s.guard = NewGuard(s.tracker, s.onLockdown, s.onTerminate)
	s.recovery = NewRecoveryFlow(cfg.Attempt.QuizID, cfg.Codes, s.guard, s.tracker)

	return s, nil
}

// InitialState returns the reconciled state sent to the client when it
// opens or resumes the attempt. Valid before Run starts.
func (s *Session) InitialState() model.AttemptState {
	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	return model.AttemptState{
		AttemptID:        s.cfg.Attempt.ID,
		QuizID:           s.cfg.Attempt.QuizID,
		Status:           s.cfg.Attempt.Status,
		StartedAt:        s.cfg.Attempt.StartedAt,
		RemainingSeconds: s.timer.Remaining(),
		Answers:          answers,
		QuestionIndex:    s.questionIndex,
		ViolationCount:   s.cfg.Attempt.ViolationCount,
		Locked:           s.guard.State() == StateExitPending,
	}
}

// Run processes events and ticks until the attempt is submitted or the
// context ends. It must be called exactly once.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.handleTick(ctx)
		case ev := <-s.events:
			s.handleEvent(ctx, ev)
		}

		if s.submitted {
			return nil
		}
	}
}

// ReportViolation enqueues a detected violation from the client.
func (s *Session) ReportViolation(kind Kind, detail string, device model.DeviceInfo) error {
	return s.enqueue(violationEvent{kind: kind, detail: detail, device: device})
}

// ReportFullscreenExit enqueues a detected fullscreen exit.
func (s *Session) ReportFullscreenExit(device model.DeviceInfo) error {
	return s.enqueue(fullscreenExitEvent{device: device})
}

// VerifyAccessCode verifies a recovery code and waits for the result.
func (s *Session) VerifyAccessCode(ctx context.Context, code string, device model.DeviceInfo) error {
	reply := make(chan error, 1)
	if err := s.enqueue(recoverEvent{code: code, device: device, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrSessionClosed
	}
}

// SaveAnswer enqueues an answer change.
func (s *Session) SaveAnswer(questionID uuid.UUID, value string) error {
	return s.enqueue(answerEvent{questionID: questionID, value: value})
}

// Navigate enqueues a question-position change.
func (s *Session) Navigate(index int) error {
	return s.enqueue(navigateEvent{index: index})
}

// RequestSubmit enqueues a manual submission.
func (s *Session) RequestSubmit() error {
	return s.enqueue(submitEvent{})
}

func (s *Session) enqueue(ev event) error {
	// The buffered send below could still win a select against the
	// closed done channel, so check closure first: a finished session
	// must deterministically reject new events.
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

func (s *Session) handleEvent(ctx context.Context, ev event) {
	switch e := ev.(type) {
	case violationEvent:
		s.handleViolation(ctx, e)
	case fullscreenExitEvent:
		if !s.cfg.Settings.RequireFullscreen {
			return
		}
		s.guard.HandleExit(ctx, e.device, s.clock())
	case recoverEvent:
		e.reply <- s.recovery.Verify(ctx, e.code, e.device, s.clock())
	case answerEvent:
		s.handleAnswer(ctx, e)
	case navigateEvent:
		if e.index >= 0 && e.index < s.cfg.QuestionCount {
			s.questionIndex = e.index
			s.writeDraft(ctx)
		}
	case submitEvent:
		s.submit(ctx, model.SubmitReasonManual)
	}
}

// handleViolation applies client-reported violations, filtered by the
// quiz's proctoring settings. Unproctored quizzes accrue nothing.
func (s *Session) handleViolation(ctx context.Context, e violationEvent) {
	if !e.kind.Valid() {
		s.log.Warn().Str("kind", string(e.kind)).Msg("ignoring unknown violation kind")
		return
	}

	switch e.kind {
	case KindFullscreenExitAttempt, KindFullscreenExitFinal:
		// Fullscreen kinds are produced by the guard, never accepted raw.
		return
	case KindInvalidAccessCode:
		// Produced by the recovery flow only.
		return
	default:
		if !s.cfg.Settings.PreventTabSwitching {
			return
		}
	}

	s.tracker.Record(ctx, e.kind, e.detail, e.device, s.clock())
}

func (s *Session) handleAnswer(ctx context.Context, e answerEvent) {
	if s.submitted || s.submitting {
		return
	}

	s.answers[e.questionID.String()] = e.value
	s.writeDraft(ctx)

	// Fire-and-forget remote save. The draft is authoritative for
	// resume; a failed remote save only warrants a client notice.
	go func() {
		if err := s.cfg.Client.SaveAnswer(ctx, s.cfg.Attempt.ID, e.questionID, e.value); err != nil {
			s.log.Error().Err(err).Stringer("question_id", e.questionID).Msg("remote answer save failed")
			s.cfg.Notifier.SaveFailed(e.questionID)
		}
	}()
}

func (s *Session) handleTick(ctx context.Context) {
	expired := s.timer.Tick()

	if s.timer.Enabled() {
		s.cfg.Notifier.TimeSync(s.timer.Remaining())
	}

	if expired {
		s.submit(ctx, model.SubmitReasonTimeExpired)
		return
	}

	s.writeDraft(ctx)
}

// onEscalate runs inside Tracker.Record on the session goroutine.
func (s *Session) onEscalate(kind Kind, total int) {
	s.cfg.Notifier.ViolationWarning(kind, total, ClassifySeverity(total))
	if total >= CriticalThreshold {
		s.submit(context.Background(), model.SubmitReasonAutoViolation)
	}
}

func (s *Session) onLockdown(exitCount int) {
	s.cfg.Notifier.Lockdown(exitCount)
}

func (s *Session) onTerminate() {
	s.cfg.Notifier.Terminated("fullscreen exit limit reached")
	s.submit(context.Background(), model.SubmitReasonTerminated)
}

// submit is the single submission funnel. Manual requests, the critical
// violation threshold, fullscreen termination, and timer expiry all
// converge here; only the first caller proceeds.
func (s *Session) submit(ctx context.Context, reason model.SubmitReason) {
	if s.submitted || s.submitting {
		return
	}
	s.submitting = true

	if err := s.cfg.Client.SubmitAttempt(ctx, s.cfg.Attempt.ID, reason); err != nil {
		// Draft is deliberately kept so a retry is lossless.
		s.log.Error().Err(err).Str("reason", string(reason)).Msg("submit failed")
		s.submitting = false
		s.cfg.Notifier.SubmitFailed()
		return
	}

	s.submitted = true
	if err := s.cfg.Drafts.Clear(ctx, s.cfg.Attempt.ID); err != nil {
		s.log.Error().Err(err).Msg("failed to clear draft after submit")
	}
	s.log.Info().Str("reason", string(reason)).Msg("attempt submitted")
	s.cfg.Notifier.Submitted(reason)
}

func (s *Session) writeDraft(ctx context.Context) {
	if s.submitted || s.submitting {
		return
	}

	snap := Snapshot{
		Answers:       s.answers,
		QuestionIndex: s.questionIndex,
	}
	if s.timer.Enabled() {
		remaining := s.timer.Remaining()
		snap.RemainingSeconds = &remaining
	}

	if err := s.cfg.Drafts.Save(ctx, s.cfg.Attempt.ID, snap); err != nil {
		s.log.Error().Err(err).Msg("draft save failed")
	}
}
