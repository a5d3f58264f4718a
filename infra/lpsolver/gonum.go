// Package lpsolver provides the simplex backend of the dispatch LP.
//
// The backend runs a bounded-variable primal simplex on a dense gonum
// tableau whose rows are the model constraints only. Prices are read from
// the optimal basis. When several duals are optimal the priced rows are
// relaxed by a small step and the basis is repaired with the dual simplex,
// which lands on the dual with the lowest market prices.
package lpsolver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/kilianp07/spotmarket/core/factory"
	"github.com/kilianp07/spotmarket/core/linear"
	"github.com/kilianp07/spotmarket/core/logger"
	"github.com/kilianp07/spotmarket/core/model"
	"github.com/kilianp07/spotmarket/core/solver"
	infralogger "github.com/kilianp07/spotmarket/infra/logger"
)

// Name identifies the backend in configuration and errors.
const Name = "gonum"

// DefaultTolerance is the reduced cost tolerance of the simplex.
const DefaultTolerance = 1e-7

func init() {
	_ = solver.Register(Name, func(conf map[string]any) (solver.Solver, error) {
		var c struct {
			Tolerance float64 `json:"tolerance"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return New(c.Tolerance, infralogger.New("lpsolver")), nil
	})
}

// Solver solves dispatch models on the calling goroutine. At most
// GOMAXPROCS solves run at once; callers beyond that wait for a slot or for
// their context.
type Solver struct {
	tol     float64
	log     logger.Logger
	sem     chan struct{}
	running atomic.Int64
}

// New returns a simplex backend. A non-positive tolerance selects
// DefaultTolerance; a nil logger discards output.
func New(tolerance float64, log logger.Logger) *Solver {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if log == nil {
		log = infralogger.NopLogger{}
	}
	return &Solver{tol: tolerance, log: log, sem: make(chan struct{}, runtime.GOMAXPROCS(0))}
}

// Solve returns an optimal solution of m. The pivot loop polls ctx, so a
// cancelled or expired context stops the solve instead of leaving it running.
func (s *Solver) Solve(ctx context.Context, m *linear.Model) (sol solver.Solution, err error) {
	if err := ctx.Err(); err != nil {
		return solver.Solution{}, &solver.Error{Backend: Name, Err: err}
	}
	if err := m.Validate(); err != nil {
		return solver.Solution{}, &solver.Error{Backend: Name, Err: err}
	}
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return solver.Solution{}, &solver.Error{Backend: Name, Err: ctx.Err()}
	}
	s.running.Add(1)
	defer func() {
		s.running.Add(-1)
		<-s.sem
	}()
	defer func() {
		if r := recover(); r != nil {
			sol, err = solver.Solution{}, &solver.Error{Backend: Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	start := time.Now()
	sol, err = s.solve(ctx, m)
	sol.Duration = time.Since(start)
	return sol, err
}

func (s *Solver) solve(ctx context.Context, m *linear.Model) (solver.Solution, error) {
	tb, err := newTableau(m, s.tol)
	if err != nil {
		return solver.Solution{}, translate(err)
	}
	tb.check = contextCheck(ctx)
	if err := tb.phaseOne(); err != nil {
		return solver.Solution{}, translate(err)
	}
	if err := tb.phaseTwo(); err != nil {
		return solver.Solution{}, translate(err)
	}
	x := tb.primalValues()
	if v := m.Violations(x, 10*tb.feas); len(v) > 0 {
		return solver.Solution{}, &solver.Error{Backend: Name,
			Err: fmt.Errorf("numerical trouble: %d violated rows, first %s", len(v), v[0])}
	}
	y := tb.rowDuals()
	if delta := relaxation(m, tb); delta != nil {
		tb.perturb(delta)
		switch err := tb.dual(); {
		case err == nil:
			y = tb.rowDuals()
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return solver.Solution{}, translate(err)
		default:
			s.log.Warnf("least price dual failed, keeping first dual: %v", err)
		}
	}
	duals := make([]float64, len(m.Constraints))
	for i, r := range tb.rowOf {
		if r < 0 {
			continue
		}
		if d := y[r]; math.Abs(d) >= 10*s.tol {
			duals[i] = d
		}
	}
	return solver.Solution{
		Status:    model.StatusOptimal,
		Objective: m.Objective(x),
		Primal:    x,
		Duals:     duals,
	}, nil
}

// relaxation loosens every priced row by one step: ">=" and "=" rows move
// down, "<=" rows move up. It returns nil when no row is priced.
func relaxation(m *linear.Model, tb *tableau) []float64 {
	var delta []float64
	step := 0.1 * tb.feas
	for i, c := range m.Constraints {
		r := tb.rowOf[i]
		if !c.Priced || r < 0 {
			continue
		}
		if delta == nil {
			delta = make([]float64, tb.rows)
		}
		delta[r] = -step
		if c.Sense == model.LessEq {
			delta[r] = step
		}
	}
	return delta
}

// translate maps tableau failures onto the solver contract. Every variable
// is bounded, so an unbounded ray signals numerical trouble, not an
// unbounded market.
func translate(err error) error {
	switch {
	case errors.Is(err, errInfeasible):
		return fmt.Errorf("%w: %v", solver.ErrInfeasible, err)
	case errors.Is(err, errRay):
		return &solver.Error{Backend: Name, Err: fmt.Errorf("numerical trouble: %w", err)}
	default:
		return &solver.Error{Backend: Name, Err: err}
	}
}
