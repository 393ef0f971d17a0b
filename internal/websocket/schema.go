package websocket

import "github.com/veriquiz/veriquiz-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer         Action = "answer"
	ActionNavigate       Action = "navigate"
	ActionViolation      Action = "violation"
	ActionFullscreenExit Action = "fullscreen_exit"
	ActionRecover        Action = "recover"
	ActionSubmit         Action = "submit"
	ActionPing           Action = "ping"
)

// RequestPayload is the client message. Fields beyond Action are
// populated per action.
type RequestPayload struct {
	Action Action           `json:"action"`
	QID    string           `json:"q_id,omitempty"`
	Value  string           `json:"value,omitempty"`
	Index  int              `json:"index,omitempty"`
	Kind   string           `json:"kind,omitempty"`
	Detail string           `json:"detail,omitempty"`
	Code   string           `json:"code,omitempty"`
	Device model.DeviceInfo `json:"device,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState        Event = "state"
	EventTimeSync     Event = "time_sync"
	EventWarning      Event = "warning"
	EventLockdown     Event = "lockdown"
	EventTerminated   Event = "terminated"
	EventSubmitted    Event = "submitted"
	EventSaveFailed   Event = "save_failed"
	EventSubmitFailed Event = "submit_failed"
	EventRecovered    Event = "recovered"
	EventError        Event = "error"
	EventPong         Event = "pong"
)

// StateResponse carries the reconciled attempt state on connect.
type StateResponse struct {
	Event Event              `json:"event"`
	State model.AttemptState `json:"state"`
}

// TimeSyncResponse carries the authoritative remaining seconds.
type TimeSyncResponse struct {
	Event     Event `json:"event"`
	Remaining int   `json:"remaining_seconds"`
}

// WarningResponse notifies the client of a recorded violation.
type WarningResponse struct {
	Event    Event  `json:"event"`
	Kind     string `json:"kind"`
	Total    int    `json:"total"`
	Severity string `json:"severity"`
}

// LockdownResponse tells the client to blur the quiz and open the
// access-code recovery dialog.
type LockdownResponse struct {
	Event     Event `json:"event"`
	ExitCount int   `json:"exit_count"`
	MaxExits  int   `json:"max_exits"`
}

// TerminatedResponse announces forced session termination.
type TerminatedResponse struct {
	Event  Event  `json:"event"`
	Reason string `json:"reason"`
}

// SubmittedResponse confirms the attempt was submitted.
type SubmittedResponse struct {
	Event  Event  `json:"event"`
	Reason string `json:"reason"`
}

// SaveFailedResponse reports a failed remote answer save. The client
// may keep working; the draft still holds the answer.
type SaveFailedResponse struct {
	Event Event  `json:"event"`
	QID   string `json:"q_id"`
}

// SubmitFailedResponse reports a failed submission; the client can retry.
type SubmitFailedResponse struct {
	Event Event `json:"event"`
}

// RecoveredResponse confirms an accepted access code.
type RecoveredResponse struct {
	Event Event `json:"event"`
}

// ErrorResponse reports a request-level error.
type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

// PongResponse answers a ping.
type PongResponse struct {
	Event Event `json:"event"`
}
