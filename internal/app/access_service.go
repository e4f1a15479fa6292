package app

import (
	"context"

	"github.com/jihongxing/influencer-giveaway/internal/clock"
	"github.com/jihongxing/influencer-giveaway/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type AccessRepository interface {
	GetActivity(ctx context.Context, activityID string) (domain.Activity, error)
	GetPasswordErrors(ctx context.Context, activityID, fanID string) (*domain.PasswordErrorRecord, error)
	// IncrementPasswordErrors bumps the consecutive-failure counter and
	// returns the new count.
	IncrementPasswordErrors(ctx context.Context, activityID, fanID string) (int, error)
	ClearPasswordErrors(ctx context.Context, activityID, fanID string) error
}

// AccessResult reports a verification outcome plus what the UI shows on
// failure.
type AccessResult struct {
	Granted           bool
	RemainingAttempts int
	Hint              string
}

// AccessService guards password-protected activities. Five consecutive wrong
// attempts by one fan lock the activity for them; a correct password resets
// the counter.
type AccessService struct {
	repo  AccessRepository
	clock clock.Clock
}

func NewAccessService(repo AccessRepository, clk clock.Clock) *AccessService {
	return &AccessService{repo: repo, clock: clk}
}

func (s *AccessService) VerifyPassword(ctx context.Context, activityID, fanID, password string) (AccessResult, error) {
	activity, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return AccessResult{}, err
	}
	if !activity.PasswordProtected {
		return AccessResult{Granted: true}, nil
	}

	record, err := s.repo.GetPasswordErrors(ctx, activityID, fanID)
	if err != nil {
		return AccessResult{}, err
	}
	if record != nil && record.ErrorCount >= domain.MaxPasswordAttempts {
		return AccessResult{Hint: activity.PasswordHint}, domain.ErrAccessLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(activity.AccessPasswordHash), []byte(password)) == nil {
		if record != nil {
			if err := s.repo.ClearPasswordErrors(ctx, activityID, fanID); err != nil {
				return AccessResult{}, err
			}
		}
		return AccessResult{Granted: true}, nil
	}

	count, err := s.repo.IncrementPasswordErrors(ctx, activityID, fanID)
	if err != nil {
		return AccessResult{}, err
	}
	remaining := domain.MaxPasswordAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	return AccessResult{RemainingAttempts: remaining, Hint: activity.PasswordHint}, domain.ErrWrongPassword
}
