package domain

import "time"

type ItemStatus string

const (
	ItemStatusAvailable ItemStatus = "available"
	ItemStatusClaimed   ItemStatus = "claimed"
)

// Item is a claimable physical good with a finite quantity. The remaining
// quantity is mutated only through the stock ledger's reserve/release
// operations and never leaves the [0, OriginalQuantity] range.
type Item struct {
	ID                string
	ActivityID        string
	Label             string
	OriginalQuantity  int
	RemainingQuantity int
	BaseShippingCost  float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Status is derived: an item is available while any stock remains.
func (i Item) Status() ItemStatus {
	if i.RemainingQuantity > 0 {
		return ItemStatusAvailable
	}
	return ItemStatusClaimed
}
