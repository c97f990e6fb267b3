// Package metrics exposes Prometheus collectors for ledger activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

const namespace = "stock_ledger"

// ResultOK labels committed movements; failures use the domain error code.
const ResultOK = "ok"

type Metrics struct {
	movements      *prometheus.CounterVec
	stock          *prometheus.GaugeVec
	commitDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests
// to avoid duplicate registration on the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		movements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movements_total",
			Help:      "Ledger movements by kind and result.",
		}, []string{"kind", "result"}),
		stock: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stock_quantity",
			Help:      "Quantity on hand after the last committed movement.",
		}, []string{"material"}),
		commitDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "movement_duration_seconds",
			Help:      "Time spent resolving, validating and committing a movement.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
}

func (m *Metrics) ObserveMovement(kind domain.MovementKind, result string, elapsed time.Duration) {
	m.movements.WithLabelValues(string(kind), result).Inc()
	m.commitDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

func (m *Metrics) SetStock(material string, quantity int) {
	m.stock.WithLabelValues(material).Set(float64(quantity))
}

func (m *Metrics) ForgetStock(material string) {
	m.stock.DeleteLabelValues(material)
}
