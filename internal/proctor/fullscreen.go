package proctor

import (
	"context"
	"time"

	"github.com/veriquiz/veriquiz-backend/internal/model"
)

// GuardState enumerates the fullscreen enforcement states.
type GuardState int

const (
	// StateEngaged means fullscreen is active and the quiz is visible.
	StateEngaged GuardState = iota
	// StateExitPending means fullscreen was lost, the quiz is locked
	// behind the access-code recovery dialog.
	StateExitPending
	// StateTerminated means the exit allowance was exhausted. Absorbing
	// for the rest of the session.
	StateTerminated
)

func (s GuardState) String() string {
	switch s {
	case StateEngaged:
		return "engaged"
	case StateExitPending:
		return "exit_pending"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// MaxExitAttempts is the cumulative fullscreen-exit allowance per attempt.
const MaxExitAttempts = 3

// Guard tracks fullscreen engagement for one attempt. The exit counter
// is cumulative across recoveries: a successful access-code recovery
// re-engages the quiz but never resets the count.
//
// Not safe for concurrent use; owned by the session goroutine.
type Guard struct {
	state       GuardState
	exitCount   int
	tracker     *Tracker
	onLockdown  func(exitCount int)
	onTerminate func()
}

// NewGuard creates a Guard in the Engaged state. Callbacks may be nil.
func NewGuard(tracker *Tracker, onLockdown func(exitCount int), onTerminate func()) *Guard {
	return &Guard{
		state:       StateEngaged,
		tracker:     tracker,
		onLockdown:  onLockdown,
		onTerminate: onTerminate,
	}
}

// HandleExit processes one detected fullscreen exit. Exits below the
// allowance lock the quiz and open recovery; the final exit terminates
// the session. Exits after termination are ignored.
func (g *Guard) HandleExit(ctx context.Context, device model.DeviceInfo, at time.Time) {
	if g.state == StateTerminated {
		return
	}

	g.exitCount++

	if g.exitCount >= MaxExitAttempts {
		g.state = StateTerminated
		g.tracker.Record(ctx, KindFullscreenExitFinal, "", device, at)
		if g.onTerminate != nil {
			g.onTerminate()
		}
		return
	}

	g.state = StateExitPending
	g.tracker.Record(ctx, KindFullscreenExitAttempt, "", device, at)
	if g.onLockdown != nil {
		g.onLockdown(g.exitCount)
	}
}

// Recover transitions ExitPending back to Engaged after a valid access
// code. Returns false if the guard is not waiting for recovery.
func (g *Guard) Recover() bool {
	if g.state != StateExitPending {
		return false
	}
	g.state = StateEngaged
	return true
}

// State returns the current enforcement state.
func (g *Guard) State() GuardState {
	return g.state
}

// ExitCount returns the cumulative number of detected exits.
func (g *Guard) ExitCount() int {
	return g.exitCount
}

// Terminated reports whether the allowance has been exhausted.
func (g *Guard) Terminated() bool {
	return g.state == StateTerminated
}
