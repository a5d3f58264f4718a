package cmd

import (
	"context"
	"fmt"

	"github.com/kilianp07/spotmarket/config"
	"github.com/kilianp07/spotmarket/core/batch"
	"github.com/kilianp07/spotmarket/core/journal"
	"github.com/kilianp07/spotmarket/core/logger"
	"github.com/kilianp07/spotmarket/core/metrics"
	"github.com/kilianp07/spotmarket/core/solver"
	_ "github.com/kilianp07/spotmarket/infra/lpsolver"
	infralogger "github.com/kilianp07/spotmarket/infra/logger"
	inframetrics "github.com/kilianp07/spotmarket/infra/metrics"
	"github.com/kilianp07/spotmarket/infra/mqtt"
)

type closer interface{ Close() }

// stack holds the components shared by the solve, batch and serve commands.
type stack struct {
	cfg     *config.Config
	log     logger.Logger
	solver  solver.Solver
	sink    metrics.MetricsSink
	journal journal.Store
	closers []closer
}

func newStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	st := &stack{cfg: cfg, log: infralogger.New("spotmarket")}
	s, err := solver.New(cfg.Solver)
	if err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}
	st.solver = s

	sink, err := metrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}
	st.track(sink)
	if cfg.MQTTEnabled() {
		pub, err := mqtt.NewPublisher(cfg.MQTT)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		st.closers = append(st.closers, pub)
		sink = metrics.NewMultiSink(sink, pub)
	}
	st.sink = sink

	store, err := journal.Open(cfg.Journal)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("journal: %w", err)
	}
	st.journal = store

	if addr := cfg.Metrics.PrometheusAddress; addr != "" {
		go func() {
			if err := inframetrics.StartPromServer(ctx, addr); err != nil {
				st.log.Errorf("prom server: %v", err)
			}
		}()
	}
	return st, nil
}

func (st *stack) track(s metrics.MetricsSink) {
	switch v := s.(type) {
	case *metrics.MultiSink:
		for _, inner := range v.Sinks {
			st.track(inner)
		}
	case closer:
		st.closers = append(st.closers, v)
	}
}

func (st *stack) runner() (*batch.Runner, error) {
	opts := []batch.Option{
		batch.WithConfig(st.cfg.Batch),
		batch.WithTimeout(st.cfg.Solver.Timeout()),
		batch.WithMarketOptions(st.cfg.Market.Options()...),
		batch.WithSink(st.sink),
	}
	if st.journal != nil {
		opts = append(opts, batch.WithJournal(st.journal))
	}
	return batch.NewRunner(st.solver, st.log, opts...)
}

// Close releases sinks and the journal.
func (st *stack) Close() {
	for _, c := range st.closers {
		c.Close()
	}
	if st.journal != nil {
		if err := st.journal.Close(); err != nil {
			st.log.Errorf("journal close: %v", err)
		}
	}
}
