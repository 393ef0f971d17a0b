package proctor

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Snapshot is the durable in-progress state for one attempt. It is
// overwritten whole on every answer change, navigation, and timer tick;
// last write wins.
type Snapshot struct {
	Answers          map[string]string `json:"answers"`
	QuestionIndex    int               `json:"current_question_index"`
	RemainingSeconds *int              `json:"remaining_seconds"`
}

// Store persists draft snapshots keyed by attempt ID. Load returns
// (nil, nil) when no snapshot exists.
type Store interface {
	Save(ctx context.Context, attemptID uuid.UUID, snap Snapshot) error
	Load(ctx context.Context, attemptID uuid.UUID) (*Snapshot, error)
	Clear(ctx context.Context, attemptID uuid.UUID) error
}

// Merge overlays a stored snapshot onto freshly fetched server state.
// Stored answers win per question since they are newer than the last
// server sync. The stored question index is adopted only when it is in
// bounds for the current question list. The stored remaining time can
// only lower the timer, never raise it.
//
// Returns the merged answers and the effective question index.
func Merge(snap *Snapshot, serverAnswers map[string]string, questionCount int, timer *Timer) (map[string]string, int) {
	answers := make(map[string]string, len(serverAnswers))
	for k, v := range serverAnswers {
		answers[k] = v
	}

	index := 0
	if snap == nil {
		return answers, index
	}

	for k, v := range snap.Answers {
		answers[k] = v
	}

	if snap.QuestionIndex >= 0 && snap.QuestionIndex < questionCount {
		index = snap.QuestionIndex
	}

	if snap.RemainingSeconds != nil {
		timer.AdoptRemaining(*snap.RemainingSeconds)
	}

	return answers, index
}

// MemoryStore is an in-process Store. Used in tests and as a fallback
// when Redis is unavailable.
type MemoryStore struct {
	mu    sync.Mutex
	snaps map[uuid.UUID]Snapshot
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[uuid.UUID]Snapshot)}
}

func (m *MemoryStore) Save(_ context.Context, attemptID uuid.UUID, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[attemptID] = copySnapshot(snap)
	return nil
}

func (m *MemoryStore) Load(_ context.Context, attemptID uuid.UUID) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[attemptID]
	if !ok {
		return nil, nil
	}
	out := copySnapshot(snap)
	return &out, nil
}

func (m *MemoryStore) Clear(_ context.Context, attemptID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, attemptID)
	return nil
}

func copySnapshot(snap Snapshot) Snapshot {
	out := Snapshot{QuestionIndex: snap.QuestionIndex}
	out.Answers = make(map[string]string, len(snap.Answers))
	for k, v := range snap.Answers {
		out.Answers[k] = v
	}
	if snap.RemainingSeconds != nil {
		rs := *snap.RemainingSeconds
		out.RemainingSeconds = &rs
	}
	return out
}
