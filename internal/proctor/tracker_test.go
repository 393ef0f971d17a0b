package proctor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/veriquiz/veriquiz-backend/internal/model"
)

type chanSink struct {
	recs chan Record
}

func (s *chanSink) AppendViolation(_ context.Context, _ uuid.UUID, _ int, rec Record) error {
	s.recs <- rec
	return nil
}

func TestClassifySeverity(t *testing.T) {
	cases := []struct {
		count int
		want  Severity
	}{
		{0, SeverityNone},
		{1, SeverityMinor},
		{2, SeverityMinor},
		{3, SeverityMajor},
		{4, SeverityMajor},
		{5, SeverityCritical},
		{17, SeverityCritical},
	}
	for _, tc := range cases {
		if got := ClassifySeverity(tc.count); got != tc.want {
			t.Errorf("ClassifySeverity(%d) = %s, want %s", tc.count, got, tc.want)
		}
	}
}

func TestTrackerCountsEveryRecord(t *testing.T) {
	tr := NewTracker(uuid.New(), 1, nil, nil, zerolog.Nop())
	ctx := context.Background()

	kinds := []Kind{
		KindTabSwitch, KindRightClick, KindWindowFocusLost,
		KindKeyboardShortcut, KindDeveloperTools, KindTabDetected,
		KindTabSwitch,
	}

	for i, kind := range kinds {
		total := tr.Record(ctx, kind, "", model.DeviceInfo{}, time.Now())
		if total != i+1 {
			t.Fatalf("record %d: total = %d, want %d", i, total, i+1)
		}
		if got := tr.Severity(); got != ClassifySeverity(i+1) {
			t.Fatalf("record %d: severity = %s, want %s", i, got, ClassifySeverity(i+1))
		}
	}

	if tr.Count() != len(kinds) {
		t.Errorf("Count() = %d, want %d", tr.Count(), len(kinds))
	}
	if got := len(tr.Records()); got != len(kinds) {
		t.Errorf("len(Records()) = %d, want %d", got, len(kinds))
	}
}

func TestTrackerFiresEscalationWithTotal(t *testing.T) {
	var gotKinds []Kind
	var gotTotals []int
	tr := NewTracker(uuid.New(), 1, nil, func(kind Kind, total int) {
		gotKinds = append(gotKinds, kind)
		gotTotals = append(gotTotals, total)
	}, zerolog.Nop())

	ctx := context.Background()
	tr.Record(ctx, KindTabSwitch, "", model.DeviceInfo{}, time.Now())
	tr.Record(ctx, KindRightClick, "", model.DeviceInfo{}, time.Now())

	if len(gotTotals) != 2 || gotTotals[0] != 1 || gotTotals[1] != 2 {
		t.Fatalf("escalation totals = %v, want [1 2]", gotTotals)
	}
	if gotKinds[1] != KindRightClick {
		t.Errorf("second escalation kind = %s, want %s", gotKinds[1], KindRightClick)
	}
}

func TestTrackerForwardsToSink(t *testing.T) {
	sink := &chanSink{recs: make(chan Record, 1)}
	tr := NewTracker(uuid.New(), 7, sink, nil, zerolog.Nop())

	tr.Record(context.Background(), KindDeveloperTools, "F12", model.DeviceInfo{Platform: "Linux"}, time.Now())

	select {
	case rec := <-sink.recs:
		if rec.Kind != KindDeveloperTools || rec.Detail != "F12" {
			t.Errorf("forwarded record = %+v", rec)
		}
	case <-time.After(time.Second):
		t.Fatal("sink never received the record")
	}
}

func TestTrackerSinkFailureDoesNotAffectCount(t *testing.T) {
	tr := NewTracker(uuid.New(), 1, failingSink{}, nil, zerolog.Nop())

	total := tr.Record(context.Background(), KindTabSwitch, "", model.DeviceInfo{}, time.Now())
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
}

type failingSink struct{}

func (failingSink) AppendViolation(context.Context, uuid.UUID, int, Record) error {
	return context.DeadlineExceeded
}
