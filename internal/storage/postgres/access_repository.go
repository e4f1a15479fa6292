package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jihongxing/influencer-giveaway/internal/domain"
)

type AccessRepository struct {
	pool *pgxpool.Pool
}

func NewAccessRepository(pool *pgxpool.Pool) *AccessRepository {
	return &AccessRepository{pool: pool}
}

func (r *AccessRepository) GetActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	return fetchActivity(ctx, r.pool, activityID)
}

func (r *AccessRepository) GetPasswordErrors(ctx context.Context, activityID, fanID string) (*domain.PasswordErrorRecord, error) {
	const q = `
SELECT activity_id, fan_id, error_count, last_error_at, created_at
FROM password_errors
WHERE activity_id = $1 AND fan_id = $2`

	var rec domain.PasswordErrorRecord
	err := queryRow(ctx, r.pool, q, activityID, fanID).Scan(
		&rec.ActivityID,
		&rec.FanID,
		&rec.ErrorCount,
		&rec.LastErrorAt,
		&rec.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get password errors: %w", err)
	}
	return &rec, nil
}

func (r *AccessRepository) IncrementPasswordErrors(ctx context.Context, activityID, fanID string) (int, error) {
	const stmt = `
INSERT INTO password_errors (activity_id, fan_id, error_count, last_error_at, created_at)
VALUES ($1, $2, 1, NOW(), NOW())
ON CONFLICT (activity_id, fan_id)
DO UPDATE SET error_count = password_errors.error_count + 1, last_error_at = NOW()
RETURNING error_count`

	var count int
	if err := queryRow(ctx, r.pool, stmt, activityID, fanID).Scan(&count); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("increment password errors: %w", err)
	}
	return count, nil
}

func (r *AccessRepository) ClearPasswordErrors(ctx context.Context, activityID, fanID string) error {
	const stmt = `
DELETE FROM password_errors
WHERE activity_id = $1 AND fan_id = $2`

	if _, err := exec(ctx, r.pool, stmt, activityID, fanID); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("clear password errors: %w", err)
	}
	return nil
}
