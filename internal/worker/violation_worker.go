package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/veriquiz/veriquiz-backend/internal/config"
	"github.com/veriquiz/veriquiz-backend/internal/model"
	"github.com/veriquiz/veriquiz-backend/internal/repository"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// ViolationWorker drains the violation queue into Postgres in batches.
// Bulk COPY first, row-by-row on failure, requeue what still fails.
type ViolationWorker struct {
	violations *repository.ViolationRepository
	attempts   *repository.AttemptRepository
	rdb        *redis.Client
	log        zerolog.Logger
}

// NewViolationWorker creates a new ViolationWorker.
func NewViolationWorker(violations *repository.ViolationRepository, attempts *repository.AttemptRepository, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{
		violations: violations,
		attempts:   attempts,
		rdb:        rdb,
		log:        log.With().Str("component", "violation_worker").Logger(),
	}
}

// Start runs the drain loop until the context ends, then flushes the
// remaining buffer.
func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("violation worker started")

	buffer := make([]model.ViolationQueueItem, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {
			w.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistViolationsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // Queue empty, loop back to check the flush timer
			}
			if ctx.Err() != nil {
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Msg("redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var item model.ViolationQueueItem
		if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
			// Malformed JSON can never be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("discarding malformed violation item")
			continue
		}
		buffer = append(buffer, item)
	}
}

// flushSafe attempts bulk insert, then row-by-row recovery with requeue.
func (w *ViolationWorker) flushSafe(ctx context.Context, batch []model.ViolationQueueItem) {
	records := make([]model.ViolationRecord, 0, len(batch))
	for _, item := range batch {
		records = append(records, model.ViolationRecord{
			AttemptID:  item.AttemptID,
			StudentID:  item.StudentID,
			Kind:       item.Kind,
			Detail:     item.Detail,
			Device:     item.Device,
			OccurredAt: item.OccurredAt,
		})
	}

	if err := w.violations.BatchCreate(ctx, records); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
		return
	}

	w.bumpCounters(ctx, batch)
}

func (w *ViolationWorker) fallbackInsert(ctx context.Context, batch []model.ViolationQueueItem) {
	var requeueList []model.ViolationQueueItem
	var inserted []model.ViolationQueueItem

	for _, item := range batch {
		rec := model.ViolationRecord{
			AttemptID:  item.AttemptID,
			StudentID:  item.StudentID,
			Kind:       item.Kind,
			Detail:     item.Detail,
			Device:     item.Device,
			OccurredAt: item.OccurredAt,
		}
		if err := w.violations.Create(ctx, &rec); err != nil {
			w.log.Error().Err(err).Stringer("attempt_id", item.AttemptID).Msg("insert failed, requeueing")
			requeueList = append(requeueList, item)
			continue
		}
		inserted = append(inserted, item)
	}

	w.bumpCounters(ctx, inserted)

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

// bumpCounters mirrors persisted rows into the attempts.violation_count
// column so result queries avoid an aggregate join.
func (w *ViolationWorker) bumpCounters(ctx context.Context, items []model.ViolationQueueItem) {
	perAttempt := make(map[string]int)
	for _, item := range items {
		perAttempt[item.AttemptID.String()]++
	}
	for _, item := range items {
		count, ok := perAttempt[item.AttemptID.String()]
		if !ok {
			continue
		}
		delete(perAttempt, item.AttemptID.String())
		if err := w.attempts.IncrementViolationCount(ctx, item.AttemptID, count); err != nil {
			w.log.Error().Err(err).Stringer("attempt_id", item.AttemptID).Msg("failed to bump violation counter")
		}
	}
}

func (w *ViolationWorker) requeue(ctx context.Context, items []model.ViolationQueueItem) {
	pipe := w.rdb.Pipeline()
	for _, item := range items {
		data, _ := json.Marshal(item)
		pipe.RPush(ctx, config.WorkerKey.PersistViolationsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: failed to requeue violations, data lost")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("requeued failed violations")
	// Avoid thrashing while the database is down.
	time.Sleep(2 * time.Second)
}

func (w *ViolationWorker) shutdown(buffer []model.ViolationQueueItem) {
	w.log.Info().Msg("violation worker stopping, flushing remaining buffer")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
