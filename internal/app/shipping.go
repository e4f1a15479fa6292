package app

import (
	"context"

	"go.uber.org/zap"
)

// LogDispatcher stands in for the courier integration: it records that a
// shipment should be created so the influencer can act on it. The real
// courier glue lives outside the core engine.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, orderID string) error {
	d.logger.Info("shipment requested", zap.String("order_id", orderID))
	return nil
}
