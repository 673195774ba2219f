// Package metrics exports stock engine events to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storeledger/internal/core/entity"
	"storeledger/internal/domain/registers/stock"
)

const namespace = "storeledger"

var _ stock.Metrics = (*Metrics)(nil)

// Metrics implements stock.Metrics.
type Metrics struct {
	// MovementsApplied counts applied movement lines.
	// Labels: type
	MovementsApplied *prometheus.CounterVec

	// MovementsRejected counts rejected movement calls.
	// Labels: type, code
	MovementsRejected *prometheus.CounterVec

	// MovementDuration tracks apply calls from lock to commit.
	// Labels: type
	MovementDuration *prometheus.HistogramVec

	SnapshotsRepaired prometheus.Counter

	// IntegrityAlarms counts snapshot mismatches and negative closing balances.
	// Labels: source
	IntegrityAlarms *prometheus.CounterVec
}

// New registers the engine metrics with registry. A nil registry means the
// default registerer.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		MovementsApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "movements_applied_total",
				Help:      "Total number of movement lines applied to the ledger",
			},
			[]string{"type"},
		),

		MovementsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "movements_rejected_total",
				Help:      "Total number of movement requests rejected, by error code",
			},
			[]string{"type", "code"},
		),

		MovementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "movement_duration_seconds",
				Help:      "Time taken to apply a movement request",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type"},
		),

		SnapshotsRepaired: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_repaired_total",
				Help:      "Total number of item snapshots rewritten from the ledger",
			},
		),

		IntegrityAlarms: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "integrity_alarms_total",
				Help:      "Total number of integrity violations detected",
			},
			[]string{"source"},
		),
	}
}

// MovementApplied records an applied request of lines movements.
func (m *Metrics) MovementApplied(t entity.MovementType, lines int, elapsed time.Duration) {
	m.MovementsApplied.WithLabelValues(label(t)).Add(float64(lines))
	m.MovementDuration.WithLabelValues(label(t)).Observe(elapsed.Seconds())
}

// MovementRejected records a rejected request.
func (m *Metrics) MovementRejected(t entity.MovementType, code string) {
	m.MovementsRejected.WithLabelValues(label(t), code).Inc()
}

// SnapshotRepaired records one repaired snapshot.
func (m *Metrics) SnapshotRepaired() {
	m.SnapshotsRepaired.Inc()
}

// IntegrityAlarm records an integrity violation found by source.
func (m *Metrics) IntegrityAlarm(source string) {
	m.IntegrityAlarms.WithLabelValues(source).Inc()
}

func label(t entity.MovementType) string {
	if t == "" {
		return "unknown"
	}
	return string(t)
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
