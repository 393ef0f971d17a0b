package proctor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/veriquiz/veriquiz-backend/internal/model"
)

type fakeClient struct {
	saveCh    chan uuid.UUID
	submitErr error
	submits   []model.SubmitReason
	saveErr   error
}

func newFakeClient() *fakeClient {
	return &fakeClient{saveCh: make(chan uuid.UUID, 16)}
}

func (c *fakeClient) SaveAnswer(_ context.Context, _ uuid.UUID, questionID uuid.UUID, _ string) error {
	c.saveCh <- questionID
	return c.saveErr
}

func (c *fakeClient) SubmitAttempt(_ context.Context, _ uuid.UUID, reason model.SubmitReason) error {
	if c.submitErr != nil {
		return c.submitErr
	}
	c.submits = append(c.submits, reason)
	return nil
}

type fakeNotifier struct {
	warnings    []int
	lockdowns   []int
	terminated  []string
	timeSyncs   []int
	submitted   []model.SubmitReason
	saveFails   []uuid.UUID
	submitFails int
}

func (n *fakeNotifier) ViolationWarning(_ Kind, total int, _ Severity) { n.warnings = append(n.warnings, total) }
func (n *fakeNotifier) Lockdown(count int)                            { n.lockdowns = append(n.lockdowns, count) }
func (n *fakeNotifier) Terminated(reason string)                      { n.terminated = append(n.terminated, reason) }
func (n *fakeNotifier) TimeSync(remaining int)                        { n.timeSyncs = append(n.timeSyncs, remaining) }
func (n *fakeNotifier) Submitted(reason model.SubmitReason)           { n.submitted = append(n.submitted, reason) }
func (n *fakeNotifier) SaveFailed(questionID uuid.UUID)               { n.saveFails = append(n.saveFails, questionID) }
func (n *fakeNotifier) SubmitFailed()                                 { n.submitFails++ }

type fakeCodeSource struct {
	code string
	err  error
}

func (s *fakeCodeSource) QuizAccessCode(context.Context, uuid.UUID) (string, error) {
	return s.code, s.err
}

type sessionFixture struct {
	session  *Session
	client   *fakeClient
	notifier *fakeNotifier
	drafts   *MemoryStore
	attempt  *model.Attempt
}

func newSessionFixture(t *testing.T, settings model.QuizSettings) *sessionFixture {
	t.Helper()

	attempt := &model.Attempt{
		ID:        uuid.New(),
		QuizID:    uuid.New(),
		StudentID: 42,
		Status:    model.AttemptStatusInProgress,
		StartedAt: time.Now(),
	}
	client := newFakeClient()
	notifier := &fakeNotifier{}
	drafts := NewMemoryStore()

	s, err := NewSession(context.Background(), SessionConfig{
		Attempt:       attempt,
		Settings:      settings,
		QuestionCount: 10,
		ServerAnswers: map[string]string{},
		Drafts:        drafts,
		Codes:         &fakeCodeSource{code: "SECRET99"},
		Client:        client,
		Notifier:      notifier,
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	return &sessionFixture{session: s, client: client, notifier: notifier, drafts: drafts, attempt: attempt}
}

func TestNewSessionRejectsSubmittedAttempt(t *testing.T) {
	_, err := NewSession(context.Background(), SessionConfig{
		Attempt: &model.Attempt{ID: uuid.New(), Status: model.AttemptStatusSubmitted},
		Drafts:  NewMemoryStore(),
		Logger:  zerolog.Nop(),
	})
	if !errors.Is(err, ErrAttemptNotResumable) {
		t.Errorf("err = %v, want ErrAttemptNotResumable", err)
	}
}

func TestSessionRestoresDraftOnStart(t *testing.T) {
	ctx := context.Background()
	attempt := &model.Attempt{
		ID:        uuid.New(),
		QuizID:    uuid.New(),
		StudentID: 1,
		Status:    model.AttemptStatusInProgress,
		StartedAt: time.Now(),
	}
	drafts := NewMemoryStore()
	drafts.Save(ctx, attempt.ID, Snapshot{
		Answers:          map[string]string{"q1": "drafted"},
		QuestionIndex:    3,
		RemainingSeconds: intPtr(100),
	})

	s, err := NewSession(ctx, SessionConfig{
		Attempt:       attempt,
		Settings:      model.QuizSettings{TimeLimitMinutes: 30},
		QuestionCount: 10,
		ServerAnswers: map[string]string{"q1": "stale", "q2": "server"},
		Drafts:        drafts,
		Client:        newFakeClient(),
		Notifier:      &fakeNotifier{},
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	state := s.InitialState()
	if state.Answers["q1"] != "drafted" {
		t.Errorf(`answer q1 = %q, want "drafted"`, state.Answers["q1"])
	}
	if state.Answers["q2"] != "server" {
		t.Errorf(`answer q2 = %q, want "server"`, state.Answers["q2"])
	}
	if state.QuestionIndex != 3 {
		t.Errorf("QuestionIndex = %d, want 3", state.QuestionIndex)
	}
	if state.RemainingSeconds != 100 {
		t.Errorf("RemainingSeconds = %d, want 100 (stored lower value)", state.RemainingSeconds)
	}
}

func TestAnswerWriteThroughAndRemoteSave(t *testing.T) {
	f := newSessionFixture(t, model.QuizSettings{})
	ctx := context.Background()
	qID := uuid.New()

	f.session.handleEvent(ctx, answerEvent{questionID: qID, value: "B"})

	snap, err := f.drafts.Load(ctx, f.attempt.ID)
	if err != nil || snap == nil {
		t.Fatalf("draft after answer = (%v, %v), want snapshot", snap, err)
	}
	if snap.Answers[qID.String()] != "B" {
		t.Errorf("drafted answer = %q, want B", snap.Answers[qID.String()])
	}

	select {
	case got := <-f.client.saveCh:
		if got != qID {
			t.Errorf("remote save for %s, want %s", got, qID)
		}
	case <-time.After(time.Second):
		t.Fatal("remote answer save never fired")
	}
}

func TestSubmitClearsDraftOnSuccessOnly(t *testing.T) {
	f := newSessionFixture(t, model.QuizSettings{})
	ctx := context.Background()
	qID := uuid.New()
	f.session.handleEvent(ctx, answerEvent{questionID: qID, value: "A"})
	<-f.client.saveCh

	// Failed submit keeps the draft so a retry is lossless.
	f.client.submitErr = errors.New("backend down")
	f.session.handleEvent(ctx, submitEvent{})
	if f.notifier.submitFails != 1 {
		t.Fatalf("submitFails = %d, want 1", f.notifier.submitFails)
	}
	snap, _ := f.drafts.Load(ctx, f.attempt.ID)
	if snap == nil || snap.Answers[qID.String()] != "A" {
		t.Fatalf("draft after failed submit = %+v, want unchanged", snap)
	}

	// Retry succeeds and removes the draft.
	f.client.submitErr = nil
	f.session.handleEvent(ctx, submitEvent{})
	if len(f.client.submits) != 1 || f.client.submits[0] != model.SubmitReasonManual {
		t.Fatalf("submits = %v, want one manual", f.client.submits)
	}
	if snap, _ := f.drafts.Load(ctx, f.attempt.ID); snap != nil {
		t.Error("draft still present after successful submit")
	}
	if !f.session.submitted {
		t.Error("session not marked submitted")
	}

	// Further submit requests are suppressed.
	f.session.handleEvent(ctx, submitEvent{})
	if len(f.client.submits) != 1 {
		t.Errorf("submits after repeat = %d, want 1", len(f.client.submits))
	}
}

func TestThreeFullscreenExitsTerminateExactlyOnce(t *testing.T) {
	f := newSessionFixture(t, model.QuizSettings{RequireFullscreen: true, TimeLimitMinutes: 1})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f.session.handleEvent(ctx, fullscreenExitEvent{})
	}

	if len(f.notifier.terminated) != 1 {
		t.Errorf("terminations = %d, want 1", len(f.notifier.terminated))
	}
	if len(f.client.submits) != 1 || f.client.submits[0] != model.SubmitReasonTerminated {
		t.Errorf("submits = %v, want one terminated", f.client.submits)
	}

	finals := 0
	for _, rec := range f.session.tracker.Records() {
		if rec.Kind == KindFullscreenExitFinal {
			finals++
		}
	}
	if finals != 1 {
		t.Errorf("fullscreen-exit-final records = %d, want 1", finals)
	}

	// Exits after termination change nothing.
	f.session.handleEvent(ctx, fullscreenExitEvent{})
	if len(f.client.submits) != 1 {
		t.Errorf("submits after extra exit = %d, want 1", len(f.client.submits))
	}
}

func TestUnproctoredQuizAccruesNothing(t *testing.T) {
	f := newSessionFixture(t, model.QuizSettings{})
	ctx := context.Background()

	for _, kind := range []Kind{KindTabSwitch, KindWindowFocusLost, KindKeyboardShortcut, KindDeveloperTools, KindTabDetected} {
		f.session.handleEvent(ctx, violationEvent{kind: kind})
	}
	f.session.handleEvent(ctx, fullscreenExitEvent{})

	if got := f.session.tracker.Count(); got != 0 {
		t.Errorf("violations = %d, want 0", got)
	}
	if f.session.guard.ExitCount() != 0 {
		t.Errorf("exit count = %d, want 0", f.session.guard.ExitCount())
	}

	// No time limit means no countdown and no time syncs.
	f.session.handleTick(ctx)
	if len(f.notifier.timeSyncs) != 0 {
		t.Errorf("timeSyncs = %v, want none", f.notifier.timeSyncs)
	}
	if len(f.client.submits) != 0 {
		t.Errorf("submits = %v, want none", f.client.submits)
	}
}

func TestCriticalViolationCountAutoSubmits(t *testing.T) {
	f := newSessionFixture(t, model.QuizSettings{PreventTabSwitching: true})
	ctx := context.Background()

	for i := 0; i < CriticalThreshold+2; i++ {
		f.session.handleEvent(ctx, violationEvent{kind: KindTabSwitch})
	}

	if len(f.client.submits) != 1 || f.client.submits[0] != model.SubmitReasonAutoViolation {
		t.Errorf("submits = %v, want one auto_violation", f.client.submits)
	}
	if len(f.notifier.warnings) < CriticalThreshold {
		t.Errorf("warnings = %d, want at least %d", len(f.notifier.warnings), CriticalThreshold)
	}
}

func TestTimerExpiryTriggersSubmitOnce(t *testing.T) {
	attempt := &model.Attempt{
		ID:        uuid.New(),
		QuizID:    uuid.New(),
		StudentID: 1,
		Status:    model.AttemptStatusInProgress,
		StartedAt: time.Now().Add(-time.Minute + 2*time.Second),
	}
	client := newFakeClient()
	notifier := &fakeNotifier{}

	s, err := NewSession(context.Background(), SessionConfig{
		Attempt:       attempt,
		Settings:      model.QuizSettings{TimeLimitMinutes: 1},
		QuestionCount: 5,
		Drafts:        NewMemoryStore(),
		Client:        client,
		Notifier:      notifier,
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.handleTick(ctx)
	}

	if len(client.submits) != 1 || client.submits[0] != model.SubmitReasonTimeExpired {
		t.Errorf("submits = %v, want one time_expired", client.submits)
	}
	if len(notifier.timeSyncs) == 0 {
		t.Error("no time syncs sent while counting down")
	}
}

func TestAccessCodeRecovery(t *testing.T) {
	f := newSessionFixture(t, model.QuizSettings{RequireFullscreen: true})
	ctx := context.Background()

	f.session.handleEvent(ctx, fullscreenExitEvent{})
	if f.session.guard.State() != StateExitPending {
		t.Fatalf("state = %s, want exit_pending", f.session.guard.State())
	}

	// Wrong code: violation recorded, still locked.
	reply := make(chan error, 1)
	f.session.handleEvent(ctx, recoverEvent{code: "nope", reply: reply})
	if err := <-reply; !errors.Is(err, ErrInvalidAccessCode) {
		t.Fatalf("wrong code err = %v, want ErrInvalidAccessCode", err)
	}
	if f.session.guard.State() != StateExitPending {
		t.Error("guard state changed on invalid code")
	}
	invalid := 0
	for _, rec := range f.session.tracker.Records() {
		if rec.Kind == KindInvalidAccessCode {
			invalid++
		}
	}
	if invalid != 1 {
		t.Errorf("invalid-access-code records = %d, want 1", invalid)
	}

	// Right code, case-insensitive with surrounding whitespace.
	reply = make(chan error, 1)
	f.session.handleEvent(ctx, recoverEvent{code: "  secret99 ", reply: reply})
	if err := <-reply; err != nil {
		t.Fatalf("valid code err = %v", err)
	}
	if f.session.guard.State() != StateEngaged {
		t.Errorf("state = %s, want engaged", f.session.guard.State())
	}
	if f.session.guard.ExitCount() != 1 {
		t.Errorf("exit count = %d, want 1 (recovery never resets)", f.session.guard.ExitCount())
	}
}

func TestSessionRunProcessesEnqueuedEvents(t *testing.T) {
	f := newSessionFixture(t, model.QuizSettings{PreventTabSwitching: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.session.Run(ctx) }()

	if err := f.session.RequestSubmit(); err != nil {
		t.Fatalf("RequestSubmit: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after submission")
	}

	if err := f.session.RequestSubmit(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("enqueue after close = %v, want ErrSessionClosed", err)
	}
}
