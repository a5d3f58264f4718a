package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/spotmarket/core/metrics"
	"github.com/kilianp07/spotmarket/core/model"
)

// PromSink exposes the latest cleared interval as Prometheus metrics.
type PromSink struct {
	intervals *prometheus.CounterVec
	solve     *prometheus.HistogramVec
	prices    *prometheus.GaugeVec
	dispatch  *prometheus.GaugeVec
	flows     *prometheus.GaugeVec
	failed    prometheus.Gauge
}

// NewPromSink registers the sink metrics on the default Prometheus registerer.
// The HTTP endpoint should be started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		intervals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spotmarket_intervals_total",
			Help: "Cleared intervals by outcome",
		}, []string{"status"}),
		solve: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spotmarket_solve_seconds",
			Help:    "Solver wall time per interval",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		prices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spotmarket_price",
			Help: "Clearing price of the last optimal interval",
		}, []string{"region", "service"}),
		dispatch: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spotmarket_unit_dispatch_mw",
			Help: "Unit dispatch of the last optimal interval",
		}, []string{"unit", "service"}),
		flows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spotmarket_interconnector_flow_mw",
			Help: "Interconnector flow of the last optimal interval",
		}, []string{"interconnector"}),
		failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spotmarket_batch_failed_intervals",
			Help: "Failed intervals in the last batch run",
		}),
	}
	var err error
	if s.intervals, err = register(reg, s.intervals); err != nil {
		return nil, err
	}
	if s.solve, err = register(reg, s.solve); err != nil {
		return nil, err
	}
	if s.prices, err = register(reg, s.prices); err != nil {
		return nil, err
	}
	if s.dispatch, err = register(reg, s.dispatch); err != nil {
		return nil, err
	}
	if s.flows, err = register(reg, s.flows); err != nil {
		return nil, err
	}
	if s.failed, err = register(reg, s.failed); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when c is a duplicate.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordDispatchResult counts every result and refreshes the gauges from optimal ones.
func (s *PromSink) RecordDispatchResult(res []model.DispatchResult) error {
	for _, r := range res {
		status := string(r.Status)
		s.intervals.WithLabelValues(status).Inc()
		s.solve.WithLabelValues(status).Observe(r.SolveTime.Seconds())
		if r.Status != model.StatusOptimal {
			continue
		}
		for _, p := range r.Prices {
			s.prices.WithLabelValues(p.Region, string(p.Service)).Set(p.Price)
		}
		for _, d := range r.Dispatch {
			s.dispatch.WithLabelValues(d.Unit, string(d.Service)).Set(d.Dispatch)
		}
		for _, f := range r.Interconnectors {
			s.flows.WithLabelValues(f.Interconnector).Set(f.Flow)
		}
	}
	return nil
}

// RecordBatch sets the failed interval gauge.
func (s *PromSink) RecordBatch(ev coremetrics.BatchSummary) error {
	s.failed.Set(float64(ev.Failed))
	return nil
}
