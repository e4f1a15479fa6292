package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jihongxing/influencer-giveaway/internal/domain"
)

type AdminRepository struct {
	pool *pgxpool.Pool
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

func (r *AdminRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *AdminRepository) CreateActivity(ctx context.Context, activity domain.Activity) error {
	const stmt = `
INSERT INTO activities (
	id, influencer_id, title, status, available_items_count,
	password_protected, access_password_hash, password_hint,
	created_at, updated_at
) VALUES ($1, $2, $3, $4, 0, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)`

	if _, err := exec(ctx, r.pool, stmt,
		activity.ID,
		activity.InfluencerID,
		activity.Title,
		activity.Status,
		activity.PasswordProtected,
		activity.AccessPasswordHash,
		activity.PasswordHint,
		activity.CreatedAt,
		activity.UpdatedAt,
	); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

func (r *AdminRepository) GetActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	return fetchActivity(ctx, r.pool, activityID)
}

func (r *AdminRepository) CreateItem(ctx context.Context, item domain.Item) error {
	const stmt = `
INSERT INTO items (
	id, activity_id, label, original_quantity, remaining_quantity,
	base_shipping_cost, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if _, err := exec(ctx, r.pool, stmt,
		item.ID,
		item.ActivityID,
		item.Label,
		item.OriginalQuantity,
		item.RemainingQuantity,
		item.BaseShippingCost,
		item.CreatedAt,
		item.UpdatedAt,
	); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

func (r *AdminRepository) GetItem(ctx context.Context, itemID string) (domain.Item, error) {
	return fetchItem(ctx, r.pool, itemID)
}

func (r *AdminRepository) ListItemsByActivity(ctx context.Context, activityID string) ([]domain.Item, error) {
	const q = `
SELECT id, activity_id, label, original_quantity, remaining_quantity,
       base_shipping_cost, created_at, updated_at
FROM items
WHERE activity_id = $1
ORDER BY created_at`

	rows, err := query(ctx, r.pool, q, activityID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(
			&it.ID,
			&it.ActivityID,
			&it.Label,
			&it.OriginalQuantity,
			&it.RemainingQuantity,
			&it.BaseShippingCost,
			&it.CreatedAt,
			&it.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *AdminRepository) CountActiveOrdersForItem(ctx context.Context, itemID string) (int, error) {
	const q = `
SELECT COUNT(*)
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE oi.item_id = $1 AND o.payment_status <> 'cancelled'`

	var count int
	if err := queryRow(ctx, r.pool, q, itemID).Scan(&count); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("count active orders for item: %w", err)
	}
	return count, nil
}

func (r *AdminRepository) DeleteItem(ctx context.Context, itemID string) error {
	const stmt = `DELETE FROM items WHERE id = $1`

	tag, err := exec(ctx, r.pool, stmt, itemID)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *AdminRepository) AdjustAvailableItems(ctx context.Context, activityID string, delta int) error {
	return adjustAvailableItems(ctx, r.pool, activityID, delta)
}
