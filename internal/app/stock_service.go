package app

import (
	"context"
	"time"

	"github.com/jihongxing/influencer-giveaway/internal/clock"
	"github.com/jihongxing/influencer-giveaway/internal/domain"
	"github.com/jihongxing/influencer-giveaway/internal/metrics"
	"go.uber.org/zap"
)

// StockChange reports a counter mutation so callers can react to the
// zero-remaining boundary.
type StockChange struct {
	ItemID     string
	ActivityID string
	Previous   int
	Remaining  int
}

type StockRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// ReserveQuantity decrements remaining stock as a single conditional
	// update guarded by remaining >= qty.
	ReserveQuantity(ctx context.Context, itemID string, qty int) (StockChange, error)
	// ReleaseQuantity credits stock back, capped at the original quantity.
	ReleaseQuantity(ctx context.Context, itemID string, qty int) (StockChange, error)
	// MarkLineFinalized stamps the order line as permanently consumed.
	MarkLineFinalized(ctx context.Context, orderID, itemID string, at time.Time) error
	AdjustAvailableItems(ctx context.Context, activityID string, delta int) error
}

// StockLedger is the surface the order and payment flows depend on.
type StockLedger interface {
	Reserve(ctx context.Context, itemID string, qty int) error
	Release(ctx context.Context, itemID string, qty int) error
	ReleaseWithRetry(ctx context.Context, itemID string, qty int) error
	Finalize(ctx context.Context, orderID, itemID string) error
}

const (
	releaseRetryAttempts = 3
	releaseRetryBackoff  = 100 * time.Millisecond
)

// StockService owns every mutation of item remaining quantities. The parent
// activity's available_items_count cache is adjusted in the same transaction
// whenever an item crosses the zero boundary.
type StockService struct {
	repo    StockRepository
	clock   clock.Clock
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewStockService(repo StockRepository, clk clock.Clock, logger *zap.Logger, m *metrics.Metrics) *StockService {
	return &StockService{
		repo:    repo,
		clock:   clk,
		logger:  logger,
		metrics: m,
	}
}

func (s *StockService) Reserve(ctx context.Context, itemID string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		change, err := s.repo.ReserveQuantity(txCtx, itemID, qty)
		if err != nil {
			if err == domain.ErrInsufficientStock {
				s.metrics.Reservations.WithLabelValues("insufficient").Inc()
			} else {
				s.metrics.Reservations.WithLabelValues("error").Inc()
			}
			return err
		}
		if change.Previous > 0 && change.Remaining == 0 {
			if err := s.repo.AdjustAvailableItems(txCtx, change.ActivityID, -1); err != nil {
				return err
			}
		}
		s.metrics.Reservations.WithLabelValues("reserved").Inc()
		return nil
	})
}

func (s *StockService) Release(ctx context.Context, itemID string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		change, err := s.repo.ReleaseQuantity(txCtx, itemID, qty)
		if err != nil {
			return err
		}
		if change.Previous == 0 && change.Remaining > 0 {
			if err := s.repo.AdjustAvailableItems(txCtx, change.ActivityID, 1); err != nil {
				return err
			}
		}
		s.metrics.Releases.Add(float64(change.Remaining - change.Previous))
		return nil
	})
}

// ReleaseWithRetry is the compensation path after a partial multi-item
// reservation. A release that still fails after the bounded retries is the
// one place stock can drift, so it is logged loudly for reconciliation.
func (s *StockService) ReleaseWithRetry(ctx context.Context, itemID string, qty int) error {
	var err error
	for attempt := 0; attempt < releaseRetryAttempts; attempt++ {
		if attempt > 0 {
			s.metrics.CompensationRetries.Inc()
			time.Sleep(releaseRetryBackoff)
		}
		if err = s.Release(ctx, itemID, qty); err == nil {
			return nil
		}
	}
	s.metrics.CompensationLost.Inc()
	s.logger.Error("compensating stock release failed after retries, manual reconciliation required",
		zap.String("item_id", itemID),
		zap.Int("quantity", qty),
		zap.Error(err),
	)
	return err
}

// Finalize is a no-op on the remaining counter (the decrement happened at
// reservation time); it records the audit transition on the order line.
func (s *StockService) Finalize(ctx context.Context, orderID, itemID string) error {
	return s.repo.MarkLineFinalized(ctx, orderID, itemID, s.clock.Now())
}
