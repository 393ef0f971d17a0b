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

// AnswerWorker drains the answer queue into Postgres. Answers are
// upserts, so a batch is collapsed to the newest value per question
// before flushing.
type AnswerWorker struct {
	attempts *repository.AttemptRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewAnswerWorker creates a new AnswerWorker.
func NewAnswerWorker(attempts *repository.AttemptRepository, rdb *redis.Client, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		attempts: attempts,
		rdb:      rdb,
		log:      log.With().Str("component", "answer_worker").Logger(),
	}
}

// Start runs the drain loop until the context ends, then flushes the
// remaining buffer.
func (w *AnswerWorker) Start(ctx context.Context) {
	w.log.Info().Msg("answer worker started")

	buffer := make([]model.AnswerQueueItem, 0, BatchSize)
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

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
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

		var item model.AnswerQueueItem
		if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
			w.log.Error().Err(err).Str("data", result[1]).Msg("discarding malformed answer item")
			continue
		}
		buffer = append(buffer, item)
	}
}

func (w *AnswerWorker) flushSafe(ctx context.Context, batch []model.AnswerQueueItem) {
	answers := collapse(batch)

	if err := w.attempts.BatchUpsertAnswers(ctx, answers); err != nil {
		w.log.Warn().Err(err).Int("count", len(answers)).Msg("batch upsert failed, attempting row-by-row recovery")
		w.fallbackUpsert(ctx, answers)
	}
}

// collapse keeps only the newest value per (attempt, question) pair,
// preserving queue order for distinct pairs.
func collapse(batch []model.AnswerQueueItem) []model.Answer {
	type key struct {
		attempt  string
		question string
	}
	index := make(map[key]int, len(batch))
	answers := make([]model.Answer, 0, len(batch))

	for _, item := range batch {
		k := key{item.AttemptID.String(), item.QuestionID.String()}
		a := model.Answer{
			AttemptID:  item.AttemptID,
			QuestionID: item.QuestionID,
			Value:      item.Value,
			AnsweredAt: item.AnsweredAt,
		}
		if i, ok := index[k]; ok {
			answers[i] = a
			continue
		}
		index[k] = len(answers)
		answers = append(answers, a)
	}
	return answers
}

func (w *AnswerWorker) fallbackUpsert(ctx context.Context, answers []model.Answer) {
	var requeueList []model.Answer

	for i := range answers {
		if err := w.attempts.UpsertAnswer(ctx, &answers[i]); err != nil {
			w.log.Error().Err(err).Stringer("attempt_id", answers[i].AttemptID).Msg("upsert failed, requeueing")
			requeueList = append(requeueList, answers[i])
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *AnswerWorker) requeue(ctx context.Context, answers []model.Answer) {
	pipe := w.rdb.Pipeline()
	for _, a := range answers {
		data, _ := json.Marshal(model.AnswerQueueItem{
			AttemptID:  a.AttemptID,
			QuestionID: a.QuestionID,
			Value:      a.Value,
			AnsweredAt: a.AnsweredAt,
		})
		pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: failed to requeue answers, data lost")
		return
	}
	w.log.Info().Int("count", len(answers)).Msg("requeued failed answers")
	time.Sleep(2 * time.Second)
}

func (w *AnswerWorker) shutdown(buffer []model.AnswerQueueItem) {
	w.log.Info().Msg("answer worker stopping, flushing remaining buffer")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
