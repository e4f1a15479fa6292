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

// PaymentRepository persists payment records and the conditional order
// transitions that settle them. It also serves the shipping watchdog's
// overdue-order queries.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *PaymentRepository) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return fetchOrder(ctx, r.pool, orderID)
}

func (r *PaymentRepository) GetActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	return fetchActivity(ctx, r.pool, activityID)
}

func (r *PaymentRepository) MarkOrderPaid(ctx context.Context, orderID, transactionID string, now time.Time) (bool, error) {
	const stmt = `
UPDATE orders
SET payment_status = 'paid', order_status = 'pending',
    transaction_id = $2, paid_at = $3, updated_at = $3
WHERE id = $1 AND payment_status IN ('pending', 'reviewing')`

	tag, err := exec(ctx, r.pool, stmt, orderID, transactionID, now)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark order paid: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PaymentRepository) MarkOrderReviewing(ctx context.Context, orderID string) (bool, error) {
	const stmt = `
UPDATE orders
SET payment_status = 'reviewing', updated_at = NOW()
WHERE id = $1 AND payment_status = 'pending' AND order_status = 'pending'`

	tag, err := exec(ctx, r.pool, stmt, orderID)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark order reviewing: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PaymentRepository) RevertOrderToPending(ctx context.Context, orderID string) (bool, error) {
	const stmt = `
UPDATE orders
SET payment_status = 'pending', updated_at = NOW()
WHERE id = $1 AND payment_status = 'reviewing'`

	tag, err := exec(ctx, r.pool, stmt, orderID)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("revert order to pending: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PaymentRepository) MarkOrderRefunded(ctx context.Context, orderID, reason string, now time.Time) (bool, error) {
	const stmt = `
UPDATE orders
SET payment_status = 'refunded', order_status = 'refunded',
    cancel_reason = $2, refunded_at = $3, updated_at = $3
WHERE id = $1 AND payment_status = 'paid' AND order_status = 'pending'`

	tag, err := exec(ctx, r.pool, stmt, orderID, reason, now)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark order refunded: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PaymentRepository) MarkStockReleased(ctx context.Context, orderID string) (bool, error) {
	return markStockReleased(ctx, r.pool, orderID)
}

func (r *PaymentRepository) CreatePayment(ctx context.Context, p domain.Payment) error {
	const stmt = `
INSERT INTO payments (id, order_id, method, amount, status, transaction_id, proof, created_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)`

	if _, err := exec(ctx, r.pool, stmt,
		p.ID, p.OrderID, p.Method, p.Amount, p.Status, p.TransactionID, p.Proof, p.CreatedAt,
	); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	const q = `
SELECT id, order_id, method, amount, status,
       COALESCE(transaction_id, ''), COALESCE(proof, ''), COALESCE(reject_reason, ''),
       created_at, reviewed_at
FROM payments
WHERE id = $1`

	var p domain.Payment
	err := queryRow(ctx, r.pool, q, paymentID).Scan(
		&p.ID,
		&p.OrderID,
		&p.Method,
		&p.Amount,
		&p.Status,
		&p.TransactionID,
		&p.Proof,
		&p.RejectReason,
		&p.CreatedAt,
		&p.ReviewedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Payment{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) ReviewPayment(ctx context.Context, paymentID string, status domain.PaymentRecordStatus, reason string, now time.Time) (bool, error) {
	const stmt = `
UPDATE payments
SET status = $2, reject_reason = NULLIF($3, ''), reviewed_at = $4
WHERE id = $1 AND status = 'reviewing'`

	tag, err := exec(ctx, r.pool, stmt, paymentID, status, reason, now)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("review payment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SettlePaymentsForOrder closes any proofs still in review when a gateway
// confirmation lands first, so a later manual review cannot double-settle.
func (r *PaymentRepository) SettlePaymentsForOrder(ctx context.Context, orderID, transactionID string, now time.Time) error {
	const stmt = `
UPDATE payments
SET status = 'paid', transaction_id = COALESCE(transaction_id, $2), reviewed_at = $3
WHERE order_id = $1 AND status = 'reviewing'`

	if _, err := exec(ctx, r.pool, stmt, orderID, transactionID, now); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("settle payments for order: %w", err)
	}
	return nil
}

func (r *PaymentRepository) MarkPaymentsRefunded(ctx context.Context, orderID string, now time.Time) error {
	const stmt = `
UPDATE payments
SET status = 'refunded', reviewed_at = COALESCE(reviewed_at, $2)
WHERE order_id = $1 AND status = 'paid'`

	if _, err := exec(ctx, r.pool, stmt, orderID, now); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("mark payments refunded: %w", err)
	}
	return nil
}

func (r *PaymentRepository) ListOverdueShipments(ctx context.Context, paidBefore time.Time, limit int) ([]app.OverdueShipment, error) {
	const q = `
SELECT o.id, o.activity_id, a.influencer_id, o.paid_at
FROM orders o
JOIN activities a ON a.id = o.activity_id
WHERE o.payment_status = 'paid' AND o.order_status = 'pending' AND o.paid_at < $1
ORDER BY o.paid_at
LIMIT $2`

	rows, err := query(ctx, r.pool, q, paidBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue shipments: %w", err)
	}
	defer rows.Close()

	var overdue []app.OverdueShipment
	for rows.Next() {
		var o app.OverdueShipment
		if err := rows.Scan(&o.OrderID, &o.ActivityID, &o.InfluencerID, &o.PaidAt); err != nil {
			return nil, fmt.Errorf("scan overdue shipment: %w", err)
		}
		overdue = append(overdue, o)
	}
	return overdue, rows.Err()
}

func (r *PaymentRepository) CreateShippingReminder(ctx context.Context, reminder domain.ShippingReminder) (bool, error) {
	const stmt = `
INSERT INTO shipping_reminders (id, order_id, activity_id, influencer_id, reminder_type, hours_overdue, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (order_id, reminder_type) DO NOTHING`

	tag, err := exec(ctx, r.pool, stmt,
		reminder.ID,
		reminder.OrderID,
		reminder.ActivityID,
		reminder.InfluencerID,
		reminder.ReminderType,
		reminder.HoursOverdue,
		reminder.Status,
		reminder.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("create shipping reminder: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
