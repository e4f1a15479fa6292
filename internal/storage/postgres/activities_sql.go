package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jihongxing/influencer-giveaway/internal/domain"
)

// fetchActivity is shared by the repositories that need owner/permission
// lookups against activities.
func fetchActivity(ctx context.Context, pool *pgxpool.Pool, activityID string) (domain.Activity, error) {
	const q = `
SELECT id, influencer_id, title, status, available_items_count,
       password_protected, COALESCE(access_password_hash, ''), COALESCE(password_hint, ''),
       created_at, updated_at
FROM activities
WHERE id = $1`

	var a domain.Activity
	err := queryRow(ctx, pool, q, activityID).Scan(
		&a.ID,
		&a.InfluencerID,
		&a.Title,
		&a.Status,
		&a.AvailableItemsCount,
		&a.PasswordProtected,
		&a.AccessPasswordHash,
		&a.PasswordHint,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Activity{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Activity{}, domain.ErrActivityNotFound
		}
		return domain.Activity{}, fmt.Errorf("get activity: %w", err)
	}
	return a, nil
}

// adjustAvailableItems moves the cached available-items aggregate, clamped
// at zero so transient double-adjustments cannot push it negative.
func adjustAvailableItems(ctx context.Context, pool *pgxpool.Pool, activityID string, delta int) error {
	const stmt = `
UPDATE activities
SET available_items_count = GREATEST(available_items_count + $2, 0), updated_at = NOW()
WHERE id = $1`

	tag, err := exec(ctx, pool, stmt, activityID, delta)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("adjust available items: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

// fetchItem is shared by the order and admin repositories.
func fetchItem(ctx context.Context, pool *pgxpool.Pool, itemID string) (domain.Item, error) {
	const q = `
SELECT id, activity_id, label, original_quantity, remaining_quantity,
       base_shipping_cost, created_at, updated_at
FROM items
WHERE id = $1`

	var it domain.Item
	err := queryRow(ctx, pool, q, itemID).Scan(
		&it.ID,
		&it.ActivityID,
		&it.Label,
		&it.OriginalQuantity,
		&it.RemainingQuantity,
		&it.BaseShippingCost,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Item{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Item{}, domain.ErrItemNotFound
		}
		return domain.Item{}, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}
