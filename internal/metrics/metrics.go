package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pickup_slots"

var (
	once sync.Once

	holdAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hold_attempts_total",
			Help:      "Hold attempts by outcome.",
		},
		[]string{"outcome"},
	)

	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Order placement attempts by outcome.",
		},
		[]string{"outcome"},
	)

	orderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_transitions_total",
			Help:      "Payment status transitions.",
		},
		[]string{"status"},
	)

	holdsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holds_swept_total",
			Help:      "Expired soft holds removed by the lazy sweep.",
		},
	)

	reclaimRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reclaimed_orders_total",
			Help:      "Expired pending orders processed by the reclaimer.",
		},
		[]string{"result"},
	)

	bulkTargets = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_edit_targets",
			Help:      "Number of slots targeted by admin bulk operations.",
			Buckets:   []float64{1, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	txRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_retries_total",
			Help:      "Transactions retried after a serialization or lock conflict.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(holdAttempts, ordersPlaced, orderTransitions, holdsSwept, reclaimRuns, bulkTargets, txRetries)
	})
}

func IncHoldAttempt(outcome string) {
	holdAttempts.WithLabelValues(outcome).Inc()
}

func IncOrderPlaced(outcome string) {
	ordersPlaced.WithLabelValues(outcome).Inc()
}

func IncOrderTransition(status string) {
	orderTransitions.WithLabelValues(status).Inc()
}

func AddHoldsSwept(n int64) {
	if n > 0 {
		holdsSwept.Add(float64(n))
	}
}

func AddReclaimed(succeeded, failed int) {
	reclaimRuns.WithLabelValues("succeeded").Add(float64(succeeded))
	reclaimRuns.WithLabelValues("failed").Add(float64(failed))
}

func ObserveBulkTargets(n int) {
	bulkTargets.Observe(float64(n))
}

func IncTxRetry() {
	txRetries.Inc()
}
