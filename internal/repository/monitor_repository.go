package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/veriquiz/veriquiz-backend/internal/config"
)

// MonitorRepository provides data access for live quiz monitoring.
// It combines PostgreSQL (attempt state) with Redis pub/sub (live
// violation and progress events).
type MonitorRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool, rdb *redis.Client) *MonitorRepository {
	return &MonitorRepository{pool: pool, rdb: rdb}
}

// GetInProgressStudentIDs returns student IDs with an open attempt on
// the quiz.
func (r *MonitorRepository) GetInProgressStudentIDs(ctx context.Context, quizID uuid.UUID) ([]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id FROM attempts WHERE quiz_id = $1 AND status = 'IN_PROGRESS'`,
		quizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetAnsweredCounts returns answered-question counts per student for a quiz.
func (r *MonitorRepository) GetAnsweredCounts(ctx context.Context, quizID uuid.UUID) (map[int]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.student_id, COUNT(ans.question_id)
		 FROM attempts a
		 JOIN answers ans ON ans.attempt_id = a.id
		 WHERE a.quiz_id = $1
		 GROUP BY a.student_id`,
		quizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var sid int
		var count int64
		if err := rows.Scan(&sid, &count); err != nil {
			return nil, err
		}
		counts[sid] = count
	}
	return counts, rows.Err()
}

// GetViolationCounts returns violation counts per student for a quiz.
func (r *MonitorRepository) GetViolationCounts(ctx context.Context, quizID uuid.UUID) (map[int]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.student_id, COUNT(v.id)
		 FROM attempts a
		 JOIN violations v ON v.attempt_id = a.id
		 WHERE a.quiz_id = $1
		 GROUP BY a.student_id`,
		quizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var sid int
		var count int64
		if err := rows.Scan(&sid, &count); err != nil {
			return nil, err
		}
		counts[sid] = count
	}
	return counts, rows.Err()
}

// PublishEvent broadcasts a monitoring event on the quiz's channel.
func (r *MonitorRepository) PublishEvent(ctx context.Context, quizID uuid.UUID, payload []byte) error {
	return r.rdb.Publish(ctx, config.CacheKey.QuizMonitorChannel(quizID), payload).Err()
}

// Subscribe opens a subscription on the quiz's monitoring channel.
// The caller owns the returned PubSub and must close it.
func (r *MonitorRepository) Subscribe(ctx context.Context, quizID uuid.UUID) *redis.PubSub {
	return r.rdb.Subscribe(ctx, config.CacheKey.QuizMonitorChannel(quizID))
}
