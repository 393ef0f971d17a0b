package proctor

import (
	"time"

	"github.com/veriquiz/veriquiz-backend/internal/model"
)

// Kind identifies a detected integrity violation.
type Kind string

const (
	KindTabSwitch             Kind = "TAB_SWITCH"
	KindWindowFocusLost       Kind = "WINDOW_FOCUS_LOST"
	KindRightClick            Kind = "RIGHT_CLICK"
	KindKeyboardShortcut      Kind = "KEYBOARD_SHORTCUT"
	KindDeveloperTools        Kind = "DEVELOPER_TOOLS"
	KindFullscreenExitAttempt Kind = "FULLSCREEN_EXIT_ATTEMPT"
	KindFullscreenExitFinal   Kind = "FULLSCREEN_EXIT_FINAL"
	KindInvalidAccessCode     Kind = "INVALID_ACCESS_CODE"
	KindTabDetected           Kind = "TAB_DETECTED"
)

// Valid reports whether the kind belongs to the closed set.
func (k Kind) Valid() bool {
	switch k {
	case KindTabSwitch, KindWindowFocusLost, KindRightClick,
		KindKeyboardShortcut, KindDeveloperTools,
		KindFullscreenExitAttempt, KindFullscreenExitFinal,
		KindInvalidAccessCode, KindTabDetected:
		return true
	}
	return false
}

// CriticalThreshold is the single authoritative violation count at which
// the attempt is force-submitted.
const CriticalThreshold = 5

// Severity buckets the running violation count.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityMinor
	SeverityMajor
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityMinor:
		return "minor"
	case SeverityMajor:
		return "major"
	case SeverityCritical:
		return "critical"
	}
	return "unknown"
}

// ClassifySeverity maps a violation count to its severity bucket.
func ClassifySeverity(count int) Severity {
	switch {
	case count <= 0:
		return SeverityNone
	case count <= 2:
		return SeverityMinor
	case count <= 4:
		return SeverityMajor
	default:
		return SeverityCritical
	}
}

// Record is one immutable detected violation.
type Record struct {
	Kind       Kind
	Detail     string
	Device     model.DeviceInfo
	OccurredAt time.Time
}
