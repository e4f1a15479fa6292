package app

import (
	"context"

	"github.com/jihongxing/influencer-giveaway/internal/clock"
	"github.com/jihongxing/influencer-giveaway/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type AdminRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateActivity(ctx context.Context, activity domain.Activity) error
	GetActivity(ctx context.Context, activityID string) (domain.Activity, error)
	CreateItem(ctx context.Context, item domain.Item) error
	GetItem(ctx context.Context, itemID string) (domain.Item, error)
	ListItemsByActivity(ctx context.Context, activityID string) ([]domain.Item, error)
	CountActiveOrdersForItem(ctx context.Context, itemID string) (int, error)
	DeleteItem(ctx context.Context, itemID string) error
	AdjustAvailableItems(ctx context.Context, activityID string, delta int) error
}

// AdminService covers the influencer-side administration the engine needs:
// creating activities and stocked items, and removing items that no fan has
// claimed.
type AdminService struct {
	repo  AdminRepository
	clock clock.Clock
}

func NewAdminService(repo AdminRepository, clk clock.Clock) *AdminService {
	return &AdminService{repo: repo, clock: clk}
}

type CreateActivityInput struct {
	InfluencerID   string
	Title          string
	AccessPassword string
	PasswordHint   string
}

func (s *AdminService) CreateActivity(ctx context.Context, in CreateActivityInput) (domain.Activity, error) {
	if in.InfluencerID == "" || in.Title == "" {
		return domain.Activity{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	activity := domain.Activity{
		ID:           newID(),
		InfluencerID: in.InfluencerID,
		Title:        in.Title,
		Status:       domain.ActivityStatusPublished,
		PasswordHint: in.PasswordHint,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.AccessPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.AccessPassword), bcrypt.DefaultCost)
		if err != nil {
			return domain.Activity{}, err
		}
		activity.PasswordProtected = true
		activity.AccessPasswordHash = string(hash)
	}

	if err := s.repo.CreateActivity(ctx, activity); err != nil {
		return domain.Activity{}, err
	}
	return activity, nil
}

type CreateItemInput struct {
	ActivityID       string
	InfluencerID     string
	Label            string
	Quantity         int
	BaseShippingCost float64
}

func (s *AdminService) CreateItem(ctx context.Context, in CreateItemInput) (domain.Item, error) {
	if in.ActivityID == "" {
		return domain.Item{}, domain.ErrInvalidID
	}
	if in.Quantity <= 0 {
		return domain.Item{}, domain.ErrInvalidQuantity
	}

	activity, err := s.repo.GetActivity(ctx, in.ActivityID)
	if err != nil {
		return domain.Item{}, err
	}
	if activity.InfluencerID != in.InfluencerID {
		return domain.Item{}, domain.ErrPermissionDenied
	}

	now := s.clock.Now()
	item := domain.Item{
		ID:                newID(),
		ActivityID:        in.ActivityID,
		Label:             in.Label,
		OriginalQuantity:  in.Quantity,
		RemainingQuantity: in.Quantity,
		BaseShippingCost:  in.BaseShippingCost,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateItem(txCtx, item); err != nil {
			return err
		}
		return s.repo.AdjustAvailableItems(txCtx, in.ActivityID, 1)
	})
	if err != nil {
		return domain.Item{}, err
	}
	return item, nil
}

func (s *AdminService) ListItems(ctx context.Context, activityID string) ([]domain.Item, error) {
	if activityID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListItemsByActivity(ctx, activityID)
}

// DeleteItem removes an item only while no non-cancelled order references it.
func (s *AdminService) DeleteItem(ctx context.Context, itemID, influencerID string) error {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	activity, err := s.repo.GetActivity(ctx, item.ActivityID)
	if err != nil {
		return err
	}
	if activity.InfluencerID != influencerID {
		return domain.ErrPermissionDenied
	}
	count, err := s.repo.CountActiveOrdersForItem(ctx, itemID)
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrItemHasOrders
	}

	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.DeleteItem(txCtx, itemID); err != nil {
			return err
		}
		if item.RemainingQuantity > 0 {
			return s.repo.AdjustAvailableItems(txCtx, item.ActivityID, -1)
		}
		return nil
	})
}
