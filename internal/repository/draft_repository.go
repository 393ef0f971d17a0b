package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/veriquiz/veriquiz-backend/internal/config"
	"github.com/veriquiz/veriquiz-backend/internal/proctor"
)

// draftTTL bounds how long an abandoned draft survives. Submitted
// attempts clear their draft explicitly; this only reaps leftovers.
const draftTTL = 24 * time.Hour

// DraftRepository is the Redis-backed draft store for in-progress
// attempts. It implements proctor.Store.
type DraftRepository struct {
	rdb *redis.Client
}

// NewDraftRepository creates a new DraftRepository.
func NewDraftRepository(rdb *redis.Client) *DraftRepository {
	return &DraftRepository{rdb: rdb}
}

// Save overwrites the draft snapshot for an attempt.
func (r *DraftRepository) Save(ctx context.Context, attemptID uuid.UUID, snap proctor.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode draft snapshot: %w", err)
	}
	return r.rdb.Set(ctx, config.CacheKey.AttemptDraftKey(attemptID), data, draftTTL).Err()
}

// Load retrieves the draft snapshot for an attempt, or (nil, nil) when
// none exists.
func (r *DraftRepository) Load(ctx context.Context, attemptID uuid.UUID) (*proctor.Snapshot, error) {
	data, err := r.rdb.Get(ctx, config.CacheKey.AttemptDraftKey(attemptID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap := &proctor.Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("decode draft snapshot: %w", err)
	}
	return snap, nil
}

// Clear removes the draft snapshot for an attempt.
func (r *DraftRepository) Clear(ctx context.Context, attemptID uuid.UUID) error {
	return r.rdb.Del(ctx, config.CacheKey.AttemptDraftKey(attemptID)).Err()
}
