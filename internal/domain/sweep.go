package domain

import "time"

// SweepSummary is returned by scheduled sweeps for observability.
type SweepSummary struct {
	Processed int
	Succeeded int
	Failed    int
}

const ReminderTypeShipping48h = "48_hour_shipping"

// ShippingReminder flags a paid order that sat unshipped past the service
// window. Purely observational; never mutates order or stock state.
type ShippingReminder struct {
	ID           string
	OrderID      string
	ActivityID   string
	InfluencerID string
	ReminderType string
	HoursOverdue int
	Status       string
	CreatedAt    time.Time
}
