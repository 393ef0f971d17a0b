package proctor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/veriquiz/veriquiz-backend/internal/model"
)

func newTestGuard(t *testing.T) (*Guard, *Tracker, *int, *int) {
	t.Helper()
	tr := NewTracker(uuid.New(), 1, nil, nil, zerolog.Nop())
	lockdowns := 0
	terminations := 0
	g := NewGuard(tr,
		func(int) { lockdowns++ },
		func() { terminations++ },
	)
	return g, tr, &lockdowns, &terminations
}

func exit(g *Guard) {
	g.HandleExit(context.Background(), model.DeviceInfo{}, time.Now())
}

func TestGuardExitsBelowLimitLockButNeverTerminate(t *testing.T) {
	g, tr, lockdowns, terminations := newTestGuard(t)

	exit(g)
	if g.State() != StateExitPending {
		t.Fatalf("state after 1st exit = %s, want exit_pending", g.State())
	}
	if !g.Recover() {
		t.Fatal("Recover() after 1st exit returned false")
	}

	exit(g)
	if g.State() != StateExitPending {
		t.Fatalf("state after 2nd exit = %s, want exit_pending", g.State())
	}

	if *terminations != 0 {
		t.Errorf("terminations = %d, want 0", *terminations)
	}
	if *lockdowns != 2 {
		t.Errorf("lockdowns = %d, want 2", *lockdowns)
	}
	if g.ExitCount() != 2 {
		t.Errorf("ExitCount() = %d, want 2", g.ExitCount())
	}
	for _, rec := range tr.Records() {
		if rec.Kind != KindFullscreenExitAttempt {
			t.Errorf("recorded kind %s, want %s", rec.Kind, KindFullscreenExitAttempt)
		}
	}
}

func TestGuardThirdExitTerminatesDespiteRecoveries(t *testing.T) {
	g, tr, _, terminations := newTestGuard(t)

	// Recover after each of the first two exits; the counter is
	// cumulative so the third exit still terminates.
	exit(g)
	g.Recover()
	exit(g)
	g.Recover()
	exit(g)

	if g.State() != StateTerminated {
		t.Fatalf("state after 3rd exit = %s, want terminated", g.State())
	}
	if *terminations != 1 {
		t.Errorf("terminations = %d, want 1", *terminations)
	}

	finals := 0
	for _, rec := range tr.Records() {
		if rec.Kind == KindFullscreenExitFinal {
			finals++
		}
	}
	if finals != 1 {
		t.Errorf("fullscreen-exit-final records = %d, want 1", finals)
	}
}

func TestGuardTerminatedIsAbsorbing(t *testing.T) {
	g, tr, _, terminations := newTestGuard(t)

	for i := 0; i < 6; i++ {
		exit(g)
	}

	if g.State() != StateTerminated {
		t.Fatalf("state = %s, want terminated", g.State())
	}
	if g.ExitCount() != 3 {
		t.Errorf("ExitCount() = %d, want 3 (exits after termination ignored)", g.ExitCount())
	}
	if *terminations != 1 {
		t.Errorf("terminations = %d, want 1", *terminations)
	}
	if tr.Count() != 3 {
		t.Errorf("violations = %d, want 3", tr.Count())
	}
	if g.Recover() {
		t.Error("Recover() from terminated returned true")
	}
}

func TestGuardRecoverOnlyFromExitPending(t *testing.T) {
	g, _, _, _ := newTestGuard(t)

	if g.Recover() {
		t.Error("Recover() from engaged returned true")
	}
	if g.State() != StateEngaged {
		t.Errorf("state = %s, want engaged", g.State())
	}
}
