package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters the core engine reports on. Register against
// the default registerer in production; tests pass a private registry.
type Metrics struct {
	Reservations        *prometheus.CounterVec
	Releases            prometheus.Counter
	CompensationRetries prometheus.Counter
	CompensationLost    prometheus.Counter
	OrdersCreated       prometheus.Counter
	OrdersCancelled     *prometheus.CounterVec
	PaymentsConfirmed   *prometheus.CounterVec
	Refunds             prometheus.Counter
	SweepProcessed      *prometheus.CounterVec
	SweepFailed         *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giveaway",
			Name:      "stock_reservations_total",
			Help:      "Stock reservation attempts by outcome.",
		}, []string{"outcome"}),
		Releases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "giveaway",
			Name:      "stock_releases_total",
			Help:      "Stock quantities credited back by release operations.",
		}),
		CompensationRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "giveaway",
			Name:      "reservation_compensation_retries_total",
			Help:      "Retries of compensating releases after a partial reservation failure.",
		}),
		CompensationLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "giveaway",
			Name:      "reservation_compensation_lost_total",
			Help:      "Compensating releases that exhausted retries and need manual reconciliation.",
		}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "giveaway",
			Name:      "orders_created_total",
			Help:      "Orders successfully created.",
		}),
		OrdersCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giveaway",
			Name:      "orders_cancelled_total",
			Help:      "Orders cancelled by reason.",
		}, []string{"reason"}),
		PaymentsConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giveaway",
			Name:      "payments_confirmed_total",
			Help:      "Payment confirmations by path (webhook, review).",
		}, []string{"path"}),
		Refunds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "giveaway",
			Name:      "refunds_total",
			Help:      "Refunded orders.",
		}),
		SweepProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giveaway",
			Name:      "sweep_processed_total",
			Help:      "Records processed by scheduled sweeps.",
		}, []string{"sweep"}),
		SweepFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giveaway",
			Name:      "sweep_failed_total",
			Help:      "Records that failed during scheduled sweeps.",
		}, []string{"sweep"}),
	}

	reg.MustRegister(
		m.Reservations,
		m.Releases,
		m.CompensationRetries,
		m.CompensationLost,
		m.OrdersCreated,
		m.OrdersCancelled,
		m.PaymentsConfirmed,
		m.Refunds,
		m.SweepProcessed,
		m.SweepFailed,
	)
	return m
}

// NewNop returns metrics bound to a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
