package proctor

import "time"

// Timer tracks the remaining seconds of a time-limited attempt.
// Remaining time is always derived from the server-recorded start
// instant, never from how long this session has been open, so reloads
// and reconnects cannot stretch the limit.
//
// Not safe for concurrent use; owned by the session goroutine.
type Timer struct {
	limitSeconds int
	remaining    int
	enabled      bool
	expired      bool
}

// NewTimer reconciles the remaining time for an attempt.
// A non-positive limit disables the timer entirely. A zero start
// instant or negative elapsed time (clock skew) yields the full
// duration. Remaining time never goes below zero.
func NewTimer(limitMinutes int, serverStartedAt time.Time, now time.Time) *Timer {
	if limitMinutes <= 0 {
		return &Timer{}
	}

	limit := limitMinutes * 60
	remaining := limit

	if !serverStartedAt.IsZero() {
		elapsed := int(now.Sub(serverStartedAt).Seconds())
		if elapsed > 0 {
			remaining = limit - elapsed
			if remaining < 0 {
				remaining = 0
			}
		}
	}

	return &Timer{limitSeconds: limit, remaining: remaining, enabled: true}
}

// Tick advances the countdown by one second. It returns true exactly
// once, on the tick where the countdown reaches zero. Disabled and
// already-expired timers always return false.
func (t *Timer) Tick() bool {
	if !t.enabled || t.expired {
		return false
	}
	if t.remaining > 0 {
		t.remaining--
	}
	if t.remaining == 0 {
		t.expired = true
		return true
	}
	return false
}

// AdoptRemaining lowers the remaining time to a stored value from an
// earlier session. Values above the server-computed remaining time are
// ignored so stored state can never extend the limit.
func (t *Timer) AdoptRemaining(stored int) {
	if !t.enabled || t.expired {
		return
	}
	if stored >= 0 && stored < t.remaining {
		t.remaining = stored
	}
}

// Remaining returns the remaining seconds. Zero for disabled timers.
func (t *Timer) Remaining() int {
	return t.remaining
}

// Enabled reports whether a countdown is active for this attempt.
func (t *Timer) Enabled() bool {
	return t.enabled
}

// Expired reports whether the countdown has reached zero.
func (t *Timer) Expired() bool {
	return t.expired
}
