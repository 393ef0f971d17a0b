package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/veriquiz/veriquiz-backend/internal/config"
	"github.com/veriquiz/veriquiz-backend/internal/model"
	"github.com/veriquiz/veriquiz-backend/internal/repository"
)

// FinalizeWorker cleans up after submitted attempts: it flushes the
// attempt's cached answers to Postgres one last time and drops the
// attempt's Redis keys. Runs item by item; finalization is idempotent
// so a crashed run can simply be requeued.
type FinalizeWorker struct {
	attempts *repository.AttemptRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewFinalizeWorker creates a new FinalizeWorker.
func NewFinalizeWorker(attempts *repository.AttemptRepository, rdb *redis.Client, log zerolog.Logger) *FinalizeWorker {
	return &FinalizeWorker{
		attempts: attempts,
		rdb:      rdb,
		log:      log.With().Str("component", "finalize_worker").Logger(),
	}
}

// Start runs the loop until the context ends.
func (w *FinalizeWorker) Start(ctx context.Context) {
	w.log.Info().Msg("finalize worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("finalize worker stopping")
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.FinalizeAttemptsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var item model.FinalizeQueueItem
		if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
			w.log.Error().Err(err).Str("data", result[1]).Msg("discarding malformed finalize item")
			continue
		}

		if err := w.finalize(ctx, item); err != nil {
			w.log.Error().Err(err).Stringer("attempt_id", item.AttemptID).Msg("finalize failed, requeueing")
			data, _ := json.Marshal(item)
			if err := w.rdb.RPush(ctx, config.WorkerKey.FinalizeAttemptsQueue, data).Err(); err != nil {
				w.log.Error().Err(err).Msg("CRITICAL: failed to requeue finalize item")
			}
			time.Sleep(2 * time.Second)
		}
	}
}

func (w *FinalizeWorker) finalize(ctx context.Context, item model.FinalizeQueueItem) error {
	answersKey := config.CacheKey.AttemptAnswersKey(item.AttemptID)

	cached, err := w.rdb.HGetAll(ctx, answersKey).Result()
	if err != nil {
		return err
	}

	if len(cached) > 0 {
		answers := make([]model.Answer, 0, len(cached))
		now := time.Now()
		for questionID, value := range cached {
			qid, err := uuid.Parse(questionID)
			if err != nil {
				w.log.Error().Str("question_id", questionID).Msg("dropping answer with invalid question id")
				continue
			}
			answers = append(answers, model.Answer{
				AttemptID:  item.AttemptID,
				QuestionID: qid,
				Value:      value,
				AnsweredAt: now,
			})
		}
		if err := w.attempts.BatchUpsertAnswers(ctx, answers); err != nil {
			return err
		}
	}

	return w.rdb.Del(ctx,
		answersKey,
		config.CacheKey.AttemptStartKey(item.AttemptID),
		config.CacheKey.AttemptDraftKey(item.AttemptID),
	).Err()
}
