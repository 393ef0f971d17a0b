package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veriquiz/veriquiz-backend/internal/model"
)

// ViolationRepository handles violation record persistence. Rows are
// append-only.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

// Create inserts a single violation record.
func (r *ViolationRepository) Create(ctx context.Context, v *model.ViolationRecord) error {
	device, err := json.Marshal(v.Device)
	if err != nil {
		return fmt.Errorf("encode device info: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO violations (attempt_id, student_id, kind, detail, device, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		v.AttemptID, v.StudentID, v.Kind, v.Detail, device, v.OccurredAt,
	).Scan(&v.ID)
}

// BatchCreate bulk-inserts violation records via COPY. Used by the
// persistence worker when flushing the queue.
func (r *ViolationRepository) BatchCreate(ctx context.Context, violations []model.ViolationRecord) error {
	rows := make([][]any, 0, len(violations))
	for _, v := range violations {
		device, err := json.Marshal(v.Device)
		if err != nil {
			return fmt.Errorf("encode device info: %w", err)
		}
		rows = append(rows, []any{v.AttemptID, v.StudentID, string(v.Kind), v.Detail, device, v.OccurredAt})
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"violations"},
		[]string{"attempt_id", "student_id", "kind", "detail", "device", "occurred_at"},
		pgx.CopyFromRows(rows))
	return err
}

// ListByAttempt retrieves all violations for an attempt in order.
func (r *ViolationRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.ViolationRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, student_id, kind, detail, device, occurred_at
		 FROM violations
		 WHERE attempt_id = $1
		 ORDER BY occurred_at ASC`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var violations []model.ViolationRecord
	for rows.Next() {
		var v model.ViolationRecord
		var device json.RawMessage
		if err := rows.Scan(&v.ID, &v.AttemptID, &v.StudentID, &v.Kind, &v.Detail, &device, &v.OccurredAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(device, &v.Device); err != nil {
			return nil, fmt.Errorf("decode device info: %w", err)
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

// CountByAttempt returns the persisted violation count for an attempt.
func (r *ViolationRepository) CountByAttempt(ctx context.Context, attemptID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM violations WHERE attempt_id = $1`, attemptID,
	).Scan(&count)
	return count, err
}
