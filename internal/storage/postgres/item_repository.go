package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jihongxing/influencer-giveaway/internal/app"
	"github.com/jihongxing/influencer-giveaway/internal/domain"
)

// ItemRepository backs the stock ledger. Both counter mutations are single
// conditional updates so concurrent claims for the last unit cannot
// interleave a read with a write.
type ItemRepository struct {
	pool *pgxpool.Pool
}

func NewItemRepository(pool *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{pool: pool}
}

func (r *ItemRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *ItemRepository) ReserveQuantity(ctx context.Context, itemID string, qty int) (app.StockChange, error) {
	const stmt = `
UPDATE items
SET remaining_quantity = remaining_quantity - $2, updated_at = NOW()
WHERE id = $1 AND remaining_quantity >= $2
RETURNING activity_id, remaining_quantity + $2, remaining_quantity`

	var ch app.StockChange
	ch.ItemID = itemID
	err := queryRow(ctx, r.pool, stmt, itemID, qty).Scan(&ch.ActivityID, &ch.Previous, &ch.Remaining)
	if err != nil {
		if isInvalidUUID(err) {
			return app.StockChange{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			// Either the item is missing or the guard rejected the decrement.
			if _, getErr := fetchItem(ctx, r.pool, itemID); getErr != nil {
				return app.StockChange{}, getErr
			}
			return app.StockChange{}, domain.ErrInsufficientStock
		}
		return app.StockChange{}, fmt.Errorf("reserve quantity: %w", err)
	}
	return ch, nil
}

func (r *ItemRepository) ReleaseQuantity(ctx context.Context, itemID string, qty int) (app.StockChange, error) {
	const stmt = `
UPDATE items i
SET remaining_quantity = LEAST(p.prev + $2, i.original_quantity), updated_at = NOW()
FROM (SELECT id, activity_id, remaining_quantity AS prev FROM items WHERE id = $1 FOR UPDATE) p
WHERE i.id = p.id
RETURNING p.activity_id, p.prev, i.remaining_quantity`

	var ch app.StockChange
	ch.ItemID = itemID
	err := queryRow(ctx, r.pool, stmt, itemID, qty).Scan(&ch.ActivityID, &ch.Previous, &ch.Remaining)
	if err != nil {
		if isInvalidUUID(err) {
			return app.StockChange{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return app.StockChange{}, domain.ErrItemNotFound
		}
		return app.StockChange{}, fmt.Errorf("release quantity: %w", err)
	}
	return ch, nil
}

func (r *ItemRepository) MarkLineFinalized(ctx context.Context, orderID, itemID string, at time.Time) error {
	const stmt = `
UPDATE order_items
SET finalized_at = COALESCE(finalized_at, $3)
WHERE order_id = $1 AND item_id = $2`

	if _, err := exec(ctx, r.pool, stmt, orderID, itemID, at); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("finalize line: %w", err)
	}
	return nil
}

func (r *ItemRepository) AdjustAvailableItems(ctx context.Context, activityID string, delta int) error {
	return adjustAvailableItems(ctx, r.pool, activityID, delta)
}
