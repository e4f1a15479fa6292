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

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *OrderRepository) GetItem(ctx context.Context, itemID string) (domain.Item, error) {
	return fetchItem(ctx, r.pool, itemID)
}

func (r *OrderRepository) GetActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	return fetchActivity(ctx, r.pool, activityID)
}

// IncrementClaimCount carries the limit check inside the upsert so two
// racing claims cannot both pass it.
func (r *OrderRepository) IncrementClaimCount(ctx context.Context, activityID, fanID string, max int) (bool, error) {
	const stmt = `
INSERT INTO claim_counters (activity_id, fan_id, claim_count)
VALUES ($1, $2, 1)
ON CONFLICT (activity_id, fan_id)
DO UPDATE SET claim_count = claim_counters.claim_count + 1
WHERE claim_counters.claim_count < $3`

	tag, err := exec(ctx, r.pool, stmt, activityID, fanID, max)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("increment claim count: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *OrderRepository) DecrementClaimCount(ctx context.Context, activityID, fanID string) error {
	const stmt = `
UPDATE claim_counters
SET claim_count = claim_count - 1
WHERE activity_id = $1 AND fan_id = $2 AND claim_count > 0`

	if _, err := exec(ctx, r.pool, stmt, activityID, fanID); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("decrement claim count: %w", err)
	}
	return nil
}

func (r *OrderRepository) ClaimCount(ctx context.Context, activityID, fanID string) (int, error) {
	const q = `
SELECT COALESCE(
	(SELECT claim_count FROM claim_counters WHERE activity_id = $1 AND fan_id = $2), 0)`

	var count int
	if err := queryRow(ctx, r.pool, q, activityID, fanID).Scan(&count); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("claim count: %w", err)
	}
	return count, nil
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	const orderStmt = `
INSERT INTO orders (
	id, activity_id, fan_id, fan_phone,
	province, city, district, street,
	contact_name, contact_phone,
	base_shipping_cost, packaging_fee, shipping_cost, platform_fee, total_amount,
	payment_status, order_status, payment_deadline, stock_released,
	created_at, updated_at
) VALUES (
	$1, $2, $3, $4,
	$5, $6, $7, $8,
	$9, $10,
	$11, $12, $13, $14, $15,
	$16, $17, $18, FALSE,
	$19, $20
)`

	_, err := exec(ctx, r.pool, orderStmt,
		order.ID,
		order.ActivityID,
		order.FanID,
		order.FanPhone,
		order.Address.Province,
		order.Address.City,
		order.Address.District,
		order.Address.Street,
		order.ContactName,
		order.ContactPhone,
		order.BaseShippingCost,
		order.PackagingFee,
		order.ShippingCost,
		order.PlatformFee,
		order.TotalAmount,
		order.PaymentStatus,
		order.OrderStatus,
		order.PaymentDeadline,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create order: %w", err)
	}

	const lineStmt = `
INSERT INTO order_items (order_id, item_id, label, quantity, base_shipping_cost, packaging_fee)
VALUES ($1, $2, $3, $4, $5, $6)`

	for _, ln := range order.Lines {
		if _, err := exec(ctx, r.pool, lineStmt,
			order.ID, ln.ItemID, ln.Label, ln.Quantity, ln.BaseShippingCost, ln.PackagingFee,
		); err != nil {
			return fmt.Errorf("create order line: %w", err)
		}
	}
	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return fetchOrder(ctx, r.pool, orderID)
}

func (r *OrderRepository) ListOrders(ctx context.Context, filter app.OrderFilter) ([]domain.Order, error) {
	q := `
SELECT id FROM orders WHERE fan_id = $1`
	args := []any{filter.FanID}
	if filter.ActivityID != "" {
		args = append(args, filter.ActivityID)
		q += fmt.Sprintf(" AND activity_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		q += fmt.Sprintf(" AND order_status = $%d", len(args))
	}
	args = append(args, filter.Limit, filter.Offset)
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := query(ctx, r.pool, q, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		o, err := fetchOrder(ctx, r.pool, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (r *OrderRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const q = `
SELECT id
FROM orders
WHERE payment_status = 'pending' AND order_status = 'pending' AND payment_deadline < $1
ORDER BY payment_deadline
LIMIT $2`

	rows, err := query(ctx, r.pool, q, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired pending: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired order id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *OrderRepository) MarkCancelled(ctx context.Context, orderID, reason string, now time.Time, from []domain.PaymentStatus) (bool, error) {
	const stmt = `
UPDATE orders
SET payment_status = 'cancelled', order_status = 'cancelled',
    cancel_reason = $2, cancelled_at = $3, updated_at = $3
WHERE id = $1 AND order_status = 'pending' AND payment_status = ANY($4)`

	statuses := make([]string, len(from))
	for i, st := range from {
		statuses[i] = string(st)
	}
	tag, err := exec(ctx, r.pool, stmt, orderID, reason, now, statuses)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark cancelled: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *OrderRepository) MarkStockReleased(ctx context.Context, orderID string) (bool, error) {
	return markStockReleased(ctx, r.pool, orderID)
}

func markStockReleased(ctx context.Context, pool *pgxpool.Pool, orderID string) (bool, error) {
	const stmt = `
UPDATE orders
SET stock_released = TRUE, updated_at = NOW()
WHERE id = $1 AND stock_released = FALSE`

	tag, err := exec(ctx, pool, stmt, orderID)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark stock released: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func fetchOrder(ctx context.Context, pool *pgxpool.Pool, orderID string) (domain.Order, error) {
	const q = `
SELECT id, activity_id, fan_id, fan_phone,
       province, city, district, street,
       contact_name, contact_phone,
       base_shipping_cost, packaging_fee, shipping_cost, platform_fee, total_amount,
       payment_status, order_status, payment_deadline,
       COALESCE(transaction_id, ''), stock_released, COALESCE(cancel_reason, ''),
       created_at, updated_at, paid_at, cancelled_at, refunded_at
FROM orders
WHERE id = $1`

	var o domain.Order
	err := queryRow(ctx, pool, q, orderID).Scan(
		&o.ID,
		&o.ActivityID,
		&o.FanID,
		&o.FanPhone,
		&o.Address.Province,
		&o.Address.City,
		&o.Address.District,
		&o.Address.Street,
		&o.ContactName,
		&o.ContactPhone,
		&o.BaseShippingCost,
		&o.PackagingFee,
		&o.ShippingCost,
		&o.PlatformFee,
		&o.TotalAmount,
		&o.PaymentStatus,
		&o.OrderStatus,
		&o.PaymentDeadline,
		&o.TransactionID,
		&o.StockReleased,
		&o.CancelReason,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.PaidAt,
		&o.CancelledAt,
		&o.RefundedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Order{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}

	const linesQ = `
SELECT item_id, label, quantity, base_shipping_cost, packaging_fee, finalized_at
FROM order_items
WHERE order_id = $1
ORDER BY item_id`

	rows, err := query(ctx, pool, linesQ, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ln domain.LineItem
		if err := rows.Scan(&ln.ItemID, &ln.Label, &ln.Quantity, &ln.BaseShippingCost, &ln.PackagingFee, &ln.FinalizedAt); err != nil {
			return domain.Order{}, fmt.Errorf("scan order line: %w", err)
		}
		o.Lines = append(o.Lines, ln)
	}
	return o, rows.Err()
}
