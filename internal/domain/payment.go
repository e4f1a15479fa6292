package domain

import "time"

type PaymentRecordStatus string

const (
	PaymentRecordReviewing PaymentRecordStatus = "reviewing"
	PaymentRecordPaid      PaymentRecordStatus = "paid"
	PaymentRecordRejected  PaymentRecordStatus = "rejected"
	PaymentRecordRefunded  PaymentRecordStatus = "refunded"
)

// Payment records one confirmation attempt against an order, either an
// offline proof awaiting manual review or a settled gateway transaction.
type Payment struct {
	ID            string
	OrderID       string
	Method        string
	Amount        float64
	Status        PaymentRecordStatus
	TransactionID string
	Proof         string
	RejectReason  string
	CreatedAt     time.Time
	ReviewedAt    *time.Time
}
