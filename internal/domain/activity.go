package domain

import "time"

type ActivityStatus string

const (
	ActivityStatusDraft     ActivityStatus = "draft"
	ActivityStatusPublished ActivityStatus = "published"
	ActivityStatusCancelled ActivityStatus = "cancelled"
)

// Activity is a single giveaway event owned by an influencer. The available
// items counter is a cached aggregate adjusted by the stock ledger whenever
// an item crosses the zero-remaining boundary.
type Activity struct {
	ID                  string
	InfluencerID        string
	Title               string
	Status              ActivityStatus
	AvailableItemsCount int
	PasswordProtected   bool
	AccessPasswordHash  string
	PasswordHint        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
