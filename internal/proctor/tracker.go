package proctor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/veriquiz/veriquiz-backend/internal/model"
)

// Sink receives violation records for out-of-session persistence.
// Implementations must be safe to call from the session goroutine.
type Sink interface {
	AppendViolation(ctx context.Context, attemptID uuid.UUID, studentID int, rec Record) error
}

// EscalateFunc is invoked after every recorded violation with the kind
// that triggered it and the new running total.
type EscalateFunc func(kind Kind, total int)

// Tracker counts violations for one attempt and classifies severity.
// It is not safe for concurrent use; all calls must come from the
// session's owning goroutine.
type Tracker struct {
	attemptID uuid.UUID
	studentID int
	records   []Record
	sink      Sink
	escalate  EscalateFunc
	log       zerolog.Logger
}

// NewTracker creates a Tracker for one attempt. escalate may be nil.
func NewTracker(attemptID uuid.UUID, studentID int, sink Sink, escalate EscalateFunc, log zerolog.Logger) *Tracker {
	return &Tracker{
		attemptID: attemptID,
		studentID: studentID,
		sink:      sink,
		escalate:  escalate,
		log:       log.With().Str("component", "violation_tracker").Stringer("attempt_id", attemptID).Logger(),
	}
}

// Record appends a violation, forwards it to the sink, and fires the
// escalation callback. Returns the new running total.
//
// The sink forward is fire-and-forget: detection must never block or
// fail because persistence is slow or down.
func (t *Tracker) Record(ctx context.Context, kind Kind, detail string, device model.DeviceInfo, at time.Time) int {
	rec := Record{Kind: kind, Detail: detail, Device: device, OccurredAt: at}
	t.records = append(t.records, rec)
	total := len(t.records)

	t.log.Warn().
		Str("kind", string(kind)).
		Int("total", total).
		Str("severity", ClassifySeverity(total).String()).
		Msg("violation recorded")

	if t.sink != nil {
		go func() {
			if err := t.sink.AppendViolation(ctx, t.attemptID, t.studentID, rec); err != nil {
				t.log.Error().Err(err).Str("kind", string(kind)).Msg("failed to forward violation")
			}
		}()
	}

	if t.escalate != nil {
		t.escalate(kind, total)
	}

	return total
}

// Count returns the running violation total.
func (t *Tracker) Count() int {
	return len(t.records)
}

// Severity returns the severity bucket for the current total.
func (t *Tracker) Severity() Severity {
	return ClassifySeverity(len(t.records))
}

// Records returns a copy of the recorded violations.
func (t *Tracker) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}
