package market

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/spotmarket/core/model"
)

var (
	solveLatency *prometheus.HistogramVec
	dispatches   *prometheus.CounterVec
	modelSize    *prometheus.GaugeVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, *prometheus.GaugeVec) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_dispatch_duration_seconds",
			Help:    "Time to assemble and solve one dispatch interval",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_dispatch_total",
			Help: "Number of dispatch attempts by outcome",
		},
		[]string{"status"},
	)
	size := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "market_model_size",
			Help: "Variables and constraints of the last assembled model",
		},
		[]string{"kind"},
	)
	return lat, total, size
}

func init() {
	solveLatency, dispatches, modelSize = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers market metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(solveLatency, dispatches, modelSize)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	solveLatency, dispatches, modelSize = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

func (m *SpotMarket) observe(status model.Status, d time.Duration) {
	solveLatency.WithLabelValues(string(status)).Observe(d.Seconds())
	dispatches.WithLabelValues(string(status)).Inc()
}
