package app

import (
	"context"
	"errors"
	"testing"

	"github.com/jihongxing/influencer-giveaway/internal/clock"
	"github.com/jihongxing/influencer-giveaway/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func newAdminService(store *fakeStore) *AdminService {
	return NewAdminService(store, clock.NewFixed(testNow))
}

func TestAdminService_CreateActivity(t *testing.T) {
	ctx := context.Background()

	t.Run("creates open activity", func(t *testing.T) {
		store := newFakeStore()
		svc := newAdminService(store)

		activity, err := svc.CreateActivity(ctx, CreateActivityInput{InfluencerID: "inf-1", Title: "Summer drop"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if activity.PasswordProtected {
			t.Fatal("expected open activity")
		}
		if activity.Status != domain.ActivityStatusPublished {
			t.Fatalf("expected published, got %s", activity.Status)
		}
	})

	t.Run("hashes the access password", func(t *testing.T) {
		store := newFakeStore()
		svc := newAdminService(store)

		activity, err := svc.CreateActivity(ctx, CreateActivityInput{
			InfluencerID:   "inf-1",
			Title:          "VIP drop",
			AccessPassword: "sesame",
			PasswordHint:   "magic word",
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if !activity.PasswordProtected {
			t.Fatal("expected protected activity")
		}
		if activity.AccessPasswordHash == "sesame" {
			t.Fatal("password stored in the clear")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(activity.AccessPasswordHash), []byte("sesame")); err != nil {
			t.Fatalf("hash does not verify: %v", err)
		}
	})

	t.Run("requires influencer and title", func(t *testing.T) {
		store := newFakeStore()
		svc := newAdminService(store)
		if _, err := svc.CreateActivity(ctx, CreateActivityInput{Title: "no owner"}); !errors.Is(err, domain.ErrInvalidID) {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})
}

func TestAdminService_CreateItem(t *testing.T) {
	ctx := context.Background()

	t.Run("creates item and bumps available count", func(t *testing.T) {
		store := newFakeStore()
		store.addActivity(domain.Activity{ID: "act-1", InfluencerID: "inf-1"})
		svc := newAdminService(store)

		item, err := svc.CreateItem(ctx, CreateItemInput{
			ActivityID:       "act-1",
			InfluencerID:     "inf-1",
			Label:            "Signed album",
			Quantity:         3,
			BaseShippingCost: 12,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if item.RemainingQuantity != 3 || item.OriginalQuantity != 3 {
			t.Fatalf("unexpected quantities: %+v", item)
		}
		a, _ := store.GetActivity(ctx, "act-1")
		if a.AvailableItemsCount != 1 {
			t.Fatalf("expected available count 1, got %d", a.AvailableItemsCount)
		}
	})

	t.Run("rejects non-owner", func(t *testing.T) {
		store := newFakeStore()
		store.addActivity(domain.Activity{ID: "act-1", InfluencerID: "inf-1"})
		svc := newAdminService(store)

		_, err := svc.CreateItem(ctx, CreateItemInput{ActivityID: "act-1", InfluencerID: "inf-2", Quantity: 1})
		if !errors.Is(err, domain.ErrPermissionDenied) {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
	})

	t.Run("rejects zero quantity", func(t *testing.T) {
		store := newFakeStore()
		store.addActivity(domain.Activity{ID: "act-1", InfluencerID: "inf-1"})
		svc := newAdminService(store)

		_, err := svc.CreateItem(ctx, CreateItemInput{ActivityID: "act-1", InfluencerID: "inf-1", Quantity: 0})
		if !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Fatalf("expected ErrInvalidQuantity, got %v", err)
		}
	})
}

func TestAdminService_DeleteItem(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes unclaimed item", func(t *testing.T) {
		store := newFakeStore()
		store.addActivity(domain.Activity{ID: "act-1", InfluencerID: "inf-1", AvailableItemsCount: 1})
		store.addItem(domain.Item{ID: "item-1", ActivityID: "act-1", OriginalQuantity: 2, RemainingQuantity: 2})
		svc := newAdminService(store)

		if err := svc.DeleteItem(ctx, "item-1", "inf-1"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := store.GetItem(ctx, "item-1"); !errors.Is(err, domain.ErrItemNotFound) {
			t.Fatal("expected item gone")
		}
		a, _ := store.GetActivity(ctx, "act-1")
		if a.AvailableItemsCount != 0 {
			t.Fatalf("expected available count 0, got %d", a.AvailableItemsCount)
		}
	})

	t.Run("refuses while orders reference the item", func(t *testing.T) {
		store := newFakeStore()
		seedGiveaway(store)
		orderSvc := newOrderService(store)
		if _, err := orderSvc.CreateOrder(ctx, validInput()); err != nil {
			t.Fatalf("create order: %v", err)
		}
		svc := newAdminService(store)

		if err := svc.DeleteItem(ctx, "item-1", "inf-1"); !errors.Is(err, domain.ErrItemHasOrders) {
			t.Fatalf("expected ErrItemHasOrders, got %v", err)
		}
	})

	t.Run("allows delete after all referencing orders cancelled", func(t *testing.T) {
		store := newFakeStore()
		seedGiveaway(store)
		orderSvc := newOrderService(store)
		order, err := orderSvc.CreateOrder(ctx, validInput())
		if err != nil {
			t.Fatalf("create order: %v", err)
		}
		if err := orderSvc.CancelOrder(ctx, order.ID, "fan-1", ""); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		svc := newAdminService(store)

		if err := svc.DeleteItem(ctx, "item-1", "inf-1"); err != nil {
			t.Fatalf("delete: %v", err)
		}
	})

	t.Run("rejects non-owner", func(t *testing.T) {
		store := newFakeStore()
		store.addActivity(domain.Activity{ID: "act-1", InfluencerID: "inf-1"})
		store.addItem(domain.Item{ID: "item-1", ActivityID: "act-1", OriginalQuantity: 1, RemainingQuantity: 1})
		svc := newAdminService(store)

		if err := svc.DeleteItem(ctx, "item-1", "inf-2"); !errors.Is(err, domain.ErrPermissionDenied) {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
	})
}
