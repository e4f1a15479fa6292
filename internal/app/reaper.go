package app

import (
	"context"
	"time"

	"github.com/jihongxing/influencer-giveaway/internal/clock"
	"github.com/jihongxing/influencer-giveaway/internal/domain"
	"github.com/jihongxing/influencer-giveaway/internal/metrics"
	"go.uber.org/zap"
)

type expiredOrderSource interface {
	ExpiredPending(ctx context.Context, now time.Time, limit int) ([]string, error)
	ExpireOrder(ctx context.Context, orderID string, now time.Time) error
}

const (
	defaultReaperInterval = 5 * time.Minute
	reaperBatchSize       = 200
)

// Reaper periodically cancels orders whose payment window elapsed and
// restores their reserved stock. Each order is handled in its own
// transaction: one failure is logged and skipped, and an overlapping run
// no-ops on orders the first run already cancelled.
type Reaper struct {
	orders   expiredOrderSource
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics
	interval time.Duration
}

func NewReaper(orders expiredOrderSource, clk clock.Clock, logger *zap.Logger, m *metrics.Metrics, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = defaultReaperInterval
	}
	return &Reaper{
		orders:   orders,
		clock:    clk,
		logger:   logger,
		metrics:  m,
		interval: interval,
	}
}

// Run performs a single sweep and reports what it touched.
func (r *Reaper) Run(ctx context.Context) (domain.SweepSummary, error) {
	now := r.clock.Now()
	ids, err := r.orders.ExpiredPending(ctx, now, reaperBatchSize)
	if err != nil {
		return domain.SweepSummary{}, err
	}

	summary := domain.SweepSummary{Processed: len(ids)}
	for _, id := range ids {
		if err := r.orders.ExpireOrder(ctx, id, now); err != nil {
			summary.Failed++
			r.logger.Error("failed to cancel expired order",
				zap.String("order_id", id),
				zap.Error(err),
			)
			continue
		}
		summary.Succeeded++
	}

	r.metrics.SweepProcessed.WithLabelValues("reaper").Add(float64(summary.Processed))
	r.metrics.SweepFailed.WithLabelValues("reaper").Add(float64(summary.Failed))
	if summary.Processed > 0 {
		r.logger.Info("expired order sweep finished",
			zap.Int("processed", summary.Processed),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed),
		)
	}
	return summary, nil
}

// Start runs the sweep on a fixed cadence until the context is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Run(ctx); err != nil {
				r.logger.Error("expired order sweep failed", zap.Error(err))
			}
		}
	}
}
