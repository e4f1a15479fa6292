package app

import (
	"context"
	"time"

	"github.com/jihongxing/influencer-giveaway/internal/clock"
	"github.com/jihongxing/influencer-giveaway/internal/domain"
	"github.com/jihongxing/influencer-giveaway/internal/metrics"
	"go.uber.org/zap"
)

// OverdueShipment is a paid order that sat unshipped past the service window.
type OverdueShipment struct {
	OrderID      string
	ActivityID   string
	InfluencerID string
	PaidAt       time.Time
}

type WatchdogRepository interface {
	ListOverdueShipments(ctx context.Context, paidBefore time.Time, limit int) ([]OverdueShipment, error)
	// CreateShippingReminder is duplicate-safe: false means a reminder of
	// this type already exists for the order.
	CreateShippingReminder(ctx context.Context, reminder domain.ShippingReminder) (bool, error)
}

const (
	defaultWatchdogInterval = 6 * time.Hour
	defaultShippingSLA      = 48 * time.Hour
	watchdogBatchSize       = 500
)

// Watchdog flags paid-but-unshipped orders past the shipping SLA. It is
// purely observational: it emits reminder records and never mutates order or
// stock state.
type Watchdog struct {
	repo     WatchdogRepository
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	sla      time.Duration
}

func NewWatchdog(repo WatchdogRepository, clk clock.Clock, logger *zap.Logger, m *metrics.Metrics, interval, sla time.Duration) *Watchdog {
	if interval <= 0 {
		interval = defaultWatchdogInterval
	}
	if sla <= 0 {
		sla = defaultShippingSLA
	}
	return &Watchdog{
		repo:     repo,
		clock:    clk,
		logger:   logger,
		metrics:  m,
		interval: interval,
		sla:      sla,
	}
}

// Run performs a single sweep and reports what it touched.
func (w *Watchdog) Run(ctx context.Context) (domain.SweepSummary, error) {
	now := w.clock.Now()
	overdue, err := w.repo.ListOverdueShipments(ctx, now.Add(-w.sla), watchdogBatchSize)
	if err != nil {
		return domain.SweepSummary{}, err
	}

	summary := domain.SweepSummary{Processed: len(overdue)}
	for _, o := range overdue {
		hoursOverdue := int(now.Sub(o.PaidAt.Add(w.sla)).Hours())
		created, err := w.repo.CreateShippingReminder(ctx, domain.ShippingReminder{
			ID:           newID(),
			OrderID:      o.OrderID,
			ActivityID:   o.ActivityID,
			InfluencerID: o.InfluencerID,
			ReminderType: domain.ReminderTypeShipping48h,
			HoursOverdue: hoursOverdue,
			Status:       "pending",
			CreatedAt:    now,
		})
		if err != nil {
			summary.Failed++
			w.logger.Error("failed to record shipping reminder",
				zap.String("order_id", o.OrderID),
				zap.Error(err),
			)
			continue
		}
		summary.Succeeded++
		if created {
			w.logger.Warn("order overdue for shipment",
				zap.String("order_id", o.OrderID),
				zap.String("influencer_id", o.InfluencerID),
				zap.Int("hours_overdue", hoursOverdue),
			)
		}
	}

	w.metrics.SweepProcessed.WithLabelValues("watchdog").Add(float64(summary.Processed))
	w.metrics.SweepFailed.WithLabelValues("watchdog").Add(float64(summary.Failed))
	return summary, nil
}

// Start runs the sweep on a fixed cadence until the context is cancelled.
func (w *Watchdog) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Run(ctx); err != nil {
				w.logger.Error("shipping reminder sweep failed", zap.Error(err))
			}
		}
	}
}
