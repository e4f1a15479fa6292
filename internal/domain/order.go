package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusReviewing PaymentStatus = "reviewing"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

const (
	// MaxClaimsPerActivity caps a fan's non-cancelled orders in one activity.
	MaxClaimsPerActivity = 2
	// MaxQuantityPerLine caps the claimed quantity of a single line item.
	MaxQuantityPerLine = 2
)

// LineItem references an item and the quantity reserved against it.
type LineItem struct {
	ItemID           string
	Label            string
	Quantity         int
	BaseShippingCost float64
	PackagingFee     float64
	FinalizedAt      *time.Time
}

type ShippingAddress struct {
	Province string
	City     string
	District string
	Street   string
}

func (a ShippingAddress) Complete() bool {
	return a.Province != "" && a.City != "" && a.District != "" && a.Street != ""
}

// Order is a fan's claim against one or more items. While PaymentStatus is
// pending the line quantities are logically reserved against stock;
// StockReleased guards that a cancellation or refund credits stock at most
// once.
type Order struct {
	ID         string
	ActivityID string
	FanID      string
	Lines      []LineItem

	FanPhone     string
	Address      ShippingAddress
	ContactName  string
	ContactPhone string

	BaseShippingCost float64
	PackagingFee     float64
	ShippingCost     float64
	PlatformFee      float64
	TotalAmount      float64

	PaymentStatus   PaymentStatus
	OrderStatus     OrderStatus
	PaymentDeadline time.Time
	TransactionID   string
	StockReleased   bool
	CancelReason    string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	PaidAt      *time.Time
	CancelledAt *time.Time
	RefundedAt  *time.Time
}

// TotalQuantity sums claimed quantities across line items.
func (o Order) TotalQuantity() int {
	total := 0
	for _, l := range o.Lines {
		total += l.Quantity
	}
	return total
}
