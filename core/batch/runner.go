// Package batch clears a sequence of interval documents, either in parallel
// or in order with ramp carry-over.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/spotmarket/core/inputs"
	"github.com/kilianp07/spotmarket/core/journal"
	"github.com/kilianp07/spotmarket/core/logger"
	"github.com/kilianp07/spotmarket/core/market"
	"github.com/kilianp07/spotmarket/core/metrics"
	"github.com/kilianp07/spotmarket/core/model"
	"github.com/kilianp07/spotmarket/core/solver"
)

// Report is the outcome of one Run. Results are in document order.
type Report struct {
	RunID    string
	Results  []model.DispatchResult
	Failed   int
	Duration time.Duration
}

// Runner solves interval documents with a shared solver.
type Runner struct {
	solver  solver.Solver
	log     logger.Logger
	cfg     Config
	timeout time.Duration
	opts    []market.Option
	sink    metrics.MetricsSink
	journal journal.Store
}

// Option customises a Runner.
type Option func(*Runner)

// WithConfig sets the worker count and carry-over mode.
func WithConfig(cfg Config) Option {
	return func(r *Runner) { r.cfg = cfg }
}

// WithTimeout bounds each interval solve. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithMarketOptions applies opts to every interval market.
func WithMarketOptions(opts ...market.Option) Option {
	return func(r *Runner) { r.opts = append(r.opts, opts...) }
}

// WithSink records every result and the batch summary.
func WithSink(s metrics.MetricsSink) Option {
	return func(r *Runner) { r.sink = s }
}

// WithJournal appends every result to the store.
func WithJournal(s journal.Store) Option {
	return func(r *Runner) { r.journal = s }
}

// NewRunner creates a Runner. Without options it uses one worker per CPU.
func NewRunner(s solver.Solver, log logger.Logger, opts ...Option) (*Runner, error) {
	if s == nil || log == nil {
		return nil, fmt.Errorf("batch: nil parameter provided to NewRunner")
	}
	r := &Runner{solver: s, log: log, sink: metrics.NopSink{}}
	for _, o := range opts {
		o(r)
	}
	r.cfg.SetDefaults()
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	if r.sink == nil {
		r.sink = metrics.NopSink{}
	}
	return r, nil
}

// Run clears every document. A failed interval is reported in its result and
// does not stop the others. The returned error covers cancellation of ctx and
// failures to record results.
func (r *Runner) Run(ctx context.Context, docs []inputs.Document) (Report, error) {
	start := time.Now()
	rep := Report{RunID: uuid.NewString(), Results: make([]model.DispatchResult, len(docs))}
	r.log.Infof("batch %s: %d intervals, %d workers, carry-over %t",
		rep.RunID, len(docs), r.cfg.Workers, r.cfg.CarryInitialOutput)

	var runErr error
	if r.cfg.CarryInitialOutput {
		runErr = r.sequential(ctx, docs, rep.Results)
	} else {
		runErr = r.parallel(ctx, docs, rep.Results)
	}
	if runErr == nil {
		runErr = ctx.Err()
	}

	for _, res := range rep.Results {
		if res.Status != model.StatusOptimal {
			rep.Failed++
		}
	}
	rep.Duration = time.Since(start)
	r.log.Infof("batch %s done: %d/%d intervals failed in %s", rep.RunID, rep.Failed, len(docs), rep.Duration)
	return rep, errors.Join(runErr, r.record(ctx, rep))
}

func (r *Runner) parallel(ctx context.Context, docs []inputs.Document, out []model.DispatchResult) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				out[i] = failed(label(docs[i], i), err)
				return err
			}
			out[i] = r.solve(gctx, docs[i], i)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) sequential(ctx context.Context, docs []inputs.Document, out []model.DispatchResult) error {
	var initial map[string]float64
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(docs); j++ {
				out[j] = failed(label(docs[j], j), err)
			}
			return err
		}
		if initial != nil {
			doc = doc.WithInitialOutput(initial)
		}
		out[i] = r.solve(ctx, doc, i)
		if out[i].Status != model.StatusOptimal {
			r.log.Warnf("interval %s failed, next interval keeps the previous initial output", out[i].Interval)
			continue
		}
		initial = InitialOutput(out[i])
	}
	return nil
}

// InitialOutput returns the energy dispatch of res as next-interval initial
// output. Solver noise below zero is clamped to zero.
func InitialOutput(res model.DispatchResult) map[string]float64 {
	out := make(map[string]float64)
	for _, d := range res.Dispatch {
		if d.Service != model.Energy {
			continue
		}
		v := d.Dispatch
		if v < 0 {
			v = 0
		}
		out[d.Unit] = v
	}
	return out
}

func (r *Runner) solve(ctx context.Context, doc inputs.Document, i int) model.DispatchResult {
	name := label(doc, i)
	m, err := market.New(r.solver, r.log, append(append([]market.Option{}, r.opts...), market.WithInterval(name))...)
	if err != nil {
		return failed(name, err)
	}
	if err := doc.Apply(m); err != nil {
		return failed(name, err)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := m.Dispatch(ctx); err != nil {
		return failed(name, err)
	}
	res, err := m.Result()
	if err != nil {
		return failed(name, err)
	}
	return res
}

func (r *Runner) record(ctx context.Context, rep Report) error {
	var errs []error
	if err := r.sink.RecordDispatchResult(rep.Results); err != nil {
		errs = append(errs, fmt.Errorf("record results: %w", err))
	}
	if rec, ok := r.sink.(metrics.BatchRecorder); ok {
		ev := metrics.BatchSummary{
			RunID:     rep.RunID,
			Intervals: len(rep.Results),
			Failed:    rep.Failed,
			Duration:  rep.Duration,
			Time:      time.Now().UTC(),
		}
		if err := rec.RecordBatch(ev); err != nil {
			errs = append(errs, fmt.Errorf("record batch: %w", err))
		}
	}
	if r.journal != nil {
		for _, res := range rep.Results {
			if err := r.journal.Append(context.WithoutCancel(ctx), journal.NewRecord(rep.RunID, res)); err != nil {
				errs = append(errs, fmt.Errorf("journal %s: %w", res.Interval, err))
				break
			}
		}
	}
	return errors.Join(errs...)
}

func label(doc inputs.Document, i int) string {
	if doc.Interval != "" {
		return doc.Interval
	}
	return fmt.Sprintf("interval-%d", i+1)
}

// Status classifies a dispatch error.
func Status(err error) model.Status {
	if errors.Is(err, market.ErrIncompleteModel) {
		return model.StatusInvalid
	}
	return solver.StatusOf(err)
}

func failed(interval string, err error) model.DispatchResult {
	return model.DispatchResult{
		Interval: interval,
		Status:   Status(err),
		Error:    err.Error(),
		SolvedAt: time.Now().UTC(),
	}
}
