package proctor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func intPtr(v int) *int { return &v }

func TestMergeStoredAnswersWin(t *testing.T) {
	now := time.Now()
	tm := NewTimer(30, now, now)

	server := map[string]string{"q1": "old", "q2": "kept"}
	snap := &Snapshot{
		Answers:       map[string]string{"q1": "new", "q3": "extra"},
		QuestionIndex: 1,
	}

	answers, index := Merge(snap, server, 3, tm)

	if answers["q1"] != "new" {
		t.Errorf(`answers["q1"] = %q, want "new" (stored wins)`, answers["q1"])
	}
	if answers["q2"] != "kept" {
		t.Errorf(`answers["q2"] = %q, want "kept"`, answers["q2"])
	}
	if answers["q3"] != "extra" {
		t.Errorf(`answers["q3"] = %q, want "extra"`, answers["q3"])
	}
	if index != 1 {
		t.Errorf("index = %d, want 1", index)
	}
}

func TestMergeIndexBounds(t *testing.T) {
	cases := []struct {
		name          string
		storedIndex   int
		questionCount int
		want          int
	}{
		{"in bounds", 4, 10, 4},
		{"at upper bound", 10, 10, 0},
		{"beyond bounds", 25, 10, 0},
		{"negative", -1, 10, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			now := time.Now()
			tm := NewTimer(0, now, now)
			_, index := Merge(&Snapshot{QuestionIndex: tc.storedIndex}, nil, tc.questionCount, tm)
			if index != tc.want {
				t.Errorf("index = %d, want %d", index, tc.want)
			}
		})
	}
}

func TestMergeRemainingNeverExceedsServerComputed(t *testing.T) {
	cases := []struct {
		name   string
		server int // seconds already elapsed of a 30 minute limit
		stored *int
		want   int
	}{
		{"stored above server is capped", 1300, intPtr(800), 500},
		{"stored below server is honored", 1300, intPtr(300), 300},
		{"no stored remaining keeps server value", 1300, nil, 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			now := time.Now()
			tm := NewTimer(30, now.Add(-time.Duration(tc.server)*time.Second), now)
			Merge(&Snapshot{RemainingSeconds: tc.stored}, nil, 1, tm)
			if tm.Remaining() != tc.want {
				t.Errorf("Remaining() = %d, want %d", tm.Remaining(), tc.want)
			}
		})
	}
}

func TestMergeNilSnapshot(t *testing.T) {
	now := time.Now()
	tm := NewTimer(30, now, now)

	answers, index := Merge(nil, map[string]string{"q1": "a"}, 5, tm)

	if answers["q1"] != "a" || len(answers) != 1 {
		t.Errorf("answers = %v, want server answers unchanged", answers)
	}
	if index != 0 {
		t.Errorf("index = %d, want 0", index)
	}
	if tm.Remaining() != 1800 {
		t.Errorf("Remaining() = %d, want 1800", tm.Remaining())
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	attemptID := uuid.New()

	if snap, err := store.Load(ctx, attemptID); err != nil || snap != nil {
		t.Fatalf("Load on empty store = (%v, %v), want (nil, nil)", snap, err)
	}

	saved := Snapshot{
		Answers:          map[string]string{"q1": "a"},
		QuestionIndex:    2,
		RemainingSeconds: intPtr(120),
	}
	if err := store.Save(ctx, attemptID, saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Mutating the original must not leak into the store.
	saved.Answers["q1"] = "mutated"

	loaded, err := store.Load(ctx, attemptID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Answers["q1"] != "a" {
		t.Errorf(`loaded answer = %q, want "a"`, loaded.Answers["q1"])
	}
	if loaded.QuestionIndex != 2 || *loaded.RemainingSeconds != 120 {
		t.Errorf("loaded = %+v", loaded)
	}

	if err := store.Clear(ctx, attemptID); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if snap, _ := store.Load(ctx, attemptID); snap != nil {
		t.Error("snapshot still present after Clear")
	}
}
