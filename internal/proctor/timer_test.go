package proctor

import (
	"testing"
	"time"
)

func TestNewTimerReconciliation(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name          string
		limitMinutes  int
		startedAt     time.Time
		wantRemaining int
		wantEnabled   bool
	}{
		{
			name:          "ten minutes elapsed of thirty",
			limitMinutes:  30,
			startedAt:     now.Add(-10 * time.Minute),
			wantRemaining: 1200,
			wantEnabled:   true,
		},
		{
			name:          "just started",
			limitMinutes:  30,
			startedAt:     now,
			wantRemaining: 1800,
			wantEnabled:   true,
		},
		{
			name:          "fully elapsed clamps to zero",
			limitMinutes:  30,
			startedAt:     now.Add(-2 * time.Hour),
			wantRemaining: 0,
			wantEnabled:   true,
		},
		{
			name:          "negative elapsed from clock skew yields full duration",
			limitMinutes:  30,
			startedAt:     now.Add(5 * time.Minute),
			wantRemaining: 1800,
			wantEnabled:   true,
		},
		{
			name:          "zero start instant yields full duration",
			limitMinutes:  30,
			startedAt:     time.Time{},
			wantRemaining: 1800,
			wantEnabled:   true,
		},
		{
			name:         "zero limit disables the timer",
			limitMinutes: 0,
			startedAt:    now,
			wantEnabled:  false,
		},
		{
			name:         "negative limit disables the timer",
			limitMinutes: -5,
			startedAt:    now,
			wantEnabled:  false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tm := NewTimer(tc.limitMinutes, tc.startedAt, now)
			if tm.Enabled() != tc.wantEnabled {
				t.Fatalf("Enabled() = %v, want %v", tm.Enabled(), tc.wantEnabled)
			}
			if tm.Enabled() && tm.Remaining() != tc.wantRemaining {
				t.Errorf("Remaining() = %d, want %d", tm.Remaining(), tc.wantRemaining)
			}
		})
	}
}

func TestTimerExpiresExactlyOnce(t *testing.T) {
	now := time.Now()
	tm := NewTimer(1, now.Add(-57*time.Second), now)

	expiries := 0
	for i := 0; i < 10; i++ {
		if tm.Tick() {
			expiries++
		}
	}

	if expiries != 1 {
		t.Errorf("expiries = %d, want 1", expiries)
	}
	if !tm.Expired() {
		t.Error("Expired() = false after reaching zero")
	}
	if tm.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", tm.Remaining())
	}
}

func TestTimerDisabledNeverFires(t *testing.T) {
	tm := NewTimer(0, time.Now(), time.Now())
	for i := 0; i < 100; i++ {
		if tm.Tick() {
			t.Fatal("disabled timer fired expiry")
		}
	}
	if tm.Expired() {
		t.Error("disabled timer reports expired")
	}
}

func TestTimerAlreadyElapsedFiresOnFirstTick(t *testing.T) {
	now := time.Now()
	tm := NewTimer(1, now.Add(-10*time.Minute), now)

	if tm.Remaining() != 0 {
		t.Fatalf("Remaining() = %d, want 0", tm.Remaining())
	}
	if !tm.Tick() {
		t.Error("first tick on elapsed timer did not fire expiry")
	}
	if tm.Tick() {
		t.Error("second tick fired expiry again")
	}
}

func TestTimerAdoptRemaining(t *testing.T) {
	now := time.Now()

	t.Run("lower stored value is adopted", func(t *testing.T) {
		tm := NewTimer(30, now, now)
		tm.AdoptRemaining(300)
		if tm.Remaining() != 300 {
			t.Errorf("Remaining() = %d, want 300", tm.Remaining())
		}
	})

	t.Run("higher stored value is ignored", func(t *testing.T) {
		tm := NewTimer(30, now.Add(-20*time.Minute), now)
		tm.AdoptRemaining(1800)
		if tm.Remaining() != 600 {
			t.Errorf("Remaining() = %d, want 600", tm.Remaining())
		}
	})

	t.Run("negative stored value is ignored", func(t *testing.T) {
		tm := NewTimer(30, now, now)
		tm.AdoptRemaining(-1)
		if tm.Remaining() != 1800 {
			t.Errorf("Remaining() = %d, want 1800", tm.Remaining())
		}
	})

	t.Run("disabled timer unaffected", func(t *testing.T) {
		tm := NewTimer(0, now, now)
		tm.AdoptRemaining(100)
		if tm.Remaining() != 0 {
			t.Errorf("Remaining() = %d, want 0", tm.Remaining())
		}
	})
}
