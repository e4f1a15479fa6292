package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jihongxing/influencer-giveaway/internal/domain"
	"github.com/jihongxing/influencer-giveaway/internal/storage/postgres"
	"github.com/jihongxing/influencer-giveaway/internal/testutil"
)

func TestOrderRepository_ClaimCounters(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	repo := postgres.NewOrderRepository(pool)

	t.Run("increments up to the limit", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		activityID := testutil.InsertActivity(t, ctx, pool, "inf-1", "Drop")

		for i := 0; i < 2; i++ {
			ok, err := repo.IncrementClaimCount(ctx, activityID, "fan-1", 2)
			if err != nil {
				t.Fatalf("increment %d: %v", i+1, err)
			}
			if !ok {
				t.Fatalf("increment %d rejected below the limit", i+1)
			}
		}

		ok, err := repo.IncrementClaimCount(ctx, activityID, "fan-1", 2)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if ok {
			t.Fatal("expected increment past limit to be rejected")
		}

		count, err := repo.ClaimCount(ctx, activityID, "fan-1")
		if err != nil {
			t.Fatalf("claim count: %v", err)
		}
		if count != 2 {
			t.Fatalf("expected count 2, got %d", count)
		}
	})

	t.Run("decrement frees a slot", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		activityID := testutil.InsertActivity(t, ctx, pool, "inf-1", "Drop")

		for i := 0; i < 2; i++ {
			if _, err := repo.IncrementClaimCount(ctx, activityID, "fan-1", 2); err != nil {
				t.Fatalf("increment: %v", err)
			}
		}
		if err := repo.DecrementClaimCount(ctx, activityID, "fan-1"); err != nil {
			t.Fatalf("decrement: %v", err)
		}
		ok, err := repo.IncrementClaimCount(ctx, activityID, "fan-1", 2)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if !ok {
			t.Fatal("expected freed slot to allow a new claim")
		}
	})

	t.Run("counters are per fan", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		activityID := testutil.InsertActivity(t, ctx, pool, "inf-1", "Drop")

		for i := 0; i < 2; i++ {
			if _, err := repo.IncrementClaimCount(ctx, activityID, "fan-1", 2); err != nil {
				t.Fatalf("increment: %v", err)
			}
		}
		ok, err := repo.IncrementClaimCount(ctx, activityID, "fan-2", 2)
		if err != nil {
			t.Fatalf("increment other fan: %v", err)
		}
		if !ok {
			t.Fatal("expected other fan unaffected by fan-1's limit")
		}
	})
}

func TestOrderRepository_CreateAndGet(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	repo := postgres.NewOrderRepository(pool)

	testutil.TruncateAll(t, ctx, pool)
	activityID := testutil.InsertActivity(t, ctx, pool, "inf-1", "Drop")
	itemID := testutil.InsertItem(t, ctx, pool, activityID, "Album", 5, 12)

	now := time.Now().UTC().Truncate(time.Millisecond)
	order := domain.Order{
		ID:         "11111111-1111-1111-1111-111111111111",
		ActivityID: activityID,
		FanID:      "fan-1",
		FanPhone:   "13812345678",
		Address: domain.ShippingAddress{
			Province: "Guangdong", City: "Shenzhen", District: "Nanshan", Street: "1 Keji Road",
		},
		ContactName:      "Fan One",
		ContactPhone:     "13812345678",
		BaseShippingCost: 12,
		PackagingFee:     2,
		ShippingCost:     14,
		PlatformFee:      0.7,
		TotalAmount:      14.7,
		PaymentStatus:    domain.PaymentStatusPending,
		OrderStatus:      domain.OrderStatusPending,
		PaymentDeadline:  now.Add(15 * time.Minute),
		CreatedAt:        now,
		UpdatedAt:        now,
		Lines: []domain.LineItem{
			{ItemID: itemID, Label: "Album", Quantity: 1, BaseShippingCost: 12, PackagingFee: 2},
		},
	}

	err := repo.WithTx(ctx, func(txCtx context.Context) error {
		return repo.CreateOrder(txCtx, order)
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	got, err := repo.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.TotalAmount != 14.7 {
		t.Fatalf("expected total 14.7, got %v", got.TotalAmount)
	}
	if len(got.Lines) != 1 || got.Lines[0].ItemID != itemID {
		t.Fatalf("unexpected lines: %+v", got.Lines)
	}
	if got.StockReleased {
		t.Fatal("new order must not be flagged released")
	}

	if _, err := repo.GetOrder(ctx, "22222222-2222-2222-2222-222222222222"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_MarkCancelled(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	repo := postgres.NewOrderRepository(pool)

	pendingStatuses := []domain.PaymentStatus{domain.PaymentStatusPending, domain.PaymentStatusReviewing}

	t.Run("cancels a pending order once", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		activityID := testutil.InsertActivity(t, ctx, pool, "inf-1", "Drop")
		orderID := testutil.InsertOrder(t, ctx, pool, domain.Order{
			ActivityID: activityID, FanID: "fan-1", FanPhone: "13812345678",
			Address: domain.ShippingAddress{Province: "A", City: "B", District: "C", Street: "D"},
		})

		ok, err := repo.MarkCancelled(ctx, orderID, "expired", time.Now(), pendingStatuses)
		if err != nil {
			t.Fatalf("mark cancelled: %v", err)
		}
		if !ok {
			t.Fatal("expected first cancel to transition")
		}

		ok, err = repo.MarkCancelled(ctx, orderID, "expired", time.Now(), pendingStatuses)
		if err != nil {
			t.Fatalf("second mark cancelled: %v", err)
		}
		if ok {
			t.Fatal("expected second cancel to no-op")
		}
	})

	t.Run("does not cancel a paid order", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		activityID := testutil.InsertActivity(t, ctx, pool, "inf-1", "Drop")
		paidAt := time.Now()
		orderID := testutil.InsertOrder(t, ctx, pool, domain.Order{
			ActivityID: activityID, FanID: "fan-1", FanPhone: "13812345678",
			Address:       domain.ShippingAddress{Province: "A", City: "B", District: "C", Street: "D"},
			PaymentStatus: domain.PaymentStatusPaid,
			PaidAt:        &paidAt,
		})

		ok, err := repo.MarkCancelled(ctx, orderID, "expired", time.Now(), pendingStatuses)
		if err != nil {
			t.Fatalf("mark cancelled: %v", err)
		}
		if ok {
			t.Fatal("paid order must not be cancellable")
		}
	})

	t.Run("stock released flag flips once", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		activityID := testutil.InsertActivity(t, ctx, pool, "inf-1", "Drop")
		orderID := testutil.InsertOrder(t, ctx, pool, domain.Order{
			ActivityID: activityID, FanID: "fan-1", FanPhone: "13812345678",
			Address: domain.ShippingAddress{Province: "A", City: "B", District: "C", Street: "D"},
		})

		ok, err := repo.MarkStockReleased(ctx, orderID)
		if err != nil {
			t.Fatalf("mark released: %v", err)
		}
		if !ok {
			t.Fatal("expected first release to win")
		}
		ok, err = repo.MarkStockReleased(ctx, orderID)
		if err != nil {
			t.Fatalf("second mark released: %v", err)
		}
		if ok {
			t.Fatal("expected second release to no-op")
		}
	})
}

func TestOrderRepository_ListExpiredPending(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	repo := postgres.NewOrderRepository(pool)

	testutil.TruncateAll(t, ctx, pool)
	activityID := testutil.InsertActivity(t, ctx, pool, "inf-1", "Drop")
	now := time.Now().UTC()

	overdueID := testutil.InsertOrder(t, ctx, pool, domain.Order{
		ActivityID: activityID, FanID: "fan-1", FanPhone: "13812345678",
		Address:         domain.ShippingAddress{Province: "A", City: "B", District: "C", Street: "D"},
		PaymentDeadline: now.Add(-time.Minute),
	})
	testutil.InsertOrder(t, ctx, pool, domain.Order{
		ActivityID: activityID, FanID: "fan-2", FanPhone: "13812345679",
		Address:         domain.ShippingAddress{Province: "A", City: "B", District: "C", Street: "D"},
		PaymentDeadline: now.Add(10 * time.Minute),
	})

	ids, err := repo.ListExpiredPending(ctx, now, 100)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(ids) != 1 || ids[0] != overdueID {
		t.Fatalf("expected only the overdue order, got %v", ids)
	}
}
