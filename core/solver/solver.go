// Package solver defines the contract between the market model and the LP
// backends that solve it.
package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/spotmarket/core/linear"
	"github.com/kilianp07/spotmarket/core/model"
)

var (
	// ErrInfeasible means the model has no feasible point.
	ErrInfeasible = errors.New("lp infeasible")
	// ErrUnbounded means the objective can decrease without limit.
	ErrUnbounded = errors.New("lp unbounded")
	// ErrSolver matches every *Error.
	ErrSolver = errors.New("solver failure")
)

// Error wraps a backend failure or timeout. Callers may retry with different
// settings; the market never retries on its own.
type Error struct {
	Backend string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("solver %s: %v", e.Backend, e.Err)
}

// Unwrap exposes the underlying cause, e.g. context.DeadlineExceeded.
func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSolver) succeed.
func (e *Error) Is(target error) bool { return target == ErrSolver }

// Solution is an optimal primal/dual pair.
type Solution struct {
	Status    model.Status
	Objective float64
	// Primal is indexed by variable id.
	Primal []float64
	// Duals is indexed by constraint id and holds d(objective)/d(rhs).
	Duals    []float64
	Duration time.Duration
}

// Solver solves an assembled model. Implementations return ErrInfeasible,
// ErrUnbounded or a *Error when no optimal solution is produced.
type Solver interface {
	Solve(ctx context.Context, m *linear.Model) (Solution, error)
}

// Func adapts a function to the Solver interface.
type Func func(ctx context.Context, m *linear.Model) (Solution, error)

// Solve calls f.
func (f Func) Solve(ctx context.Context, m *linear.Model) (Solution, error) { return f(ctx, m) }

// StatusOf maps a Solve error to a status.
func StatusOf(err error) model.Status {
	switch {
	case err == nil:
		return model.StatusOptimal
	case errors.Is(err, ErrInfeasible):
		return model.StatusInfeasible
	case errors.Is(err, ErrUnbounded):
		return model.StatusUnbounded
	case errors.Is(err, model.ErrValidation):
		return model.StatusInvalid
	default:
		return model.StatusError
	}
}
