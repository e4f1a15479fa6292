package domain

import "time"

// MaxPasswordAttempts locks activity access after this many consecutive
// wrong-password attempts by one fan.
const MaxPasswordAttempts = 5

// PasswordErrorRecord tracks consecutive wrong-password attempts per
// (activity, fan). Cleared on a successful verification.
type PasswordErrorRecord struct {
	ActivityID  string
	FanID       string
	ErrorCount  int
	LastErrorAt time.Time
	CreatedAt   time.Time
}
