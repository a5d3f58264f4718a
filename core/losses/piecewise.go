package losses

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"

	"github.com/kilianp07/spotmarket/core/model"
)

// ErrOutOfRange is returned when a flow lies outside the interpolation grid.
var ErrOutOfRange = errors.New("flow outside interpolation grid")

// convexityTol is the relative slack allowed when comparing segment slopes.
const convexityTol = 1e-9

// PiecewiseLinear interpolates losses between break points.
type PiecewiseLinear struct {
	BreakPoints []float64
	// Values holds the exact losses at each break point.
	Values []float64

	fit    interp.PiecewiseLinear
	fitted bool
}

// Approximate evaluates fn on the grid and checks the result is convex. The
// grid is sorted, and zero flow is added when the grid spans it so the
// approximation is exact at no-flow.
func Approximate(interconnector string, fn model.LossFunction, grid []float64) (PiecewiseLinear, error) {
	if fn == nil {
		return PiecewiseLinear{}, model.NewValidationError("interconnector_losses", interconnector, "loss function is nil")
	}
	bps := append([]float64(nil), grid...)
	sort.Float64s(bps)
	if len(bps) < 2 {
		return PiecewiseLinear{}, model.NewValidationError("break_points", interconnector, "need at least two break points")
	}
	for i, bp := range bps {
		if math.IsNaN(bp) || math.IsInf(bp, 0) {
			return PiecewiseLinear{}, model.NewValidationError("break_points", interconnector, "break points must be finite")
		}
		if i > 0 && bp == bps[i-1] {
			return PiecewiseLinear{}, model.NewValidationError("break_points", interconnector, fmt.Sprintf("duplicate break point %v", bp))
		}
	}
	if bps[0] < 0 && bps[len(bps)-1] > 0 {
		i := sort.SearchFloat64s(bps, 0)
		if bps[i] != 0 {
			bps = append(bps, 0)
			copy(bps[i+1:], bps[i:])
			bps[i] = 0
		}
	}
	pl := PiecewiseLinear{BreakPoints: bps, Values: make([]float64, len(bps))}
	for i, bp := range bps {
		l := fn.Losses(bp)
		if math.IsNaN(l) || math.IsInf(l, 0) {
			return PiecewiseLinear{}, model.NewValidationError("interconnector_losses", interconnector, fmt.Sprintf("losses at flow %v are not finite", bp))
		}
		pl.Values[i] = l
	}
	if err := pl.checkConvex(); err != nil {
		return PiecewiseLinear{}, model.NewValidationError("interconnector_losses", interconnector, err.Error())
	}
	_ = pl.fit.Fit(pl.BreakPoints, pl.Values)
	pl.fitted = true
	return pl, nil
}

func (p PiecewiseLinear) slope(i int) float64 {
	return (p.Values[i+1] - p.Values[i]) / (p.BreakPoints[i+1] - p.BreakPoints[i])
}

func (p PiecewiseLinear) checkConvex() error {
	for i := 1; i+1 < len(p.BreakPoints); i++ {
		prev, next := p.slope(i-1), p.slope(i)
		scale := math.Max(1, math.Max(math.Abs(prev), math.Abs(next)))
		if next < prev-convexityTol*scale {
			return fmt.Errorf("losses not convex at flow %v: slope drops from %v to %v", p.BreakPoints[i], prev, next)
		}
	}
	return nil
}

// Losses interpolates the losses at flow.
func (p PiecewiseLinear) Losses(flow float64) (float64, error) {
	n := len(p.BreakPoints)
	if n < 2 || flow < p.BreakPoints[0] || flow > p.BreakPoints[n-1] {
		return 0, fmt.Errorf("%w: %v", ErrOutOfRange, flow)
	}
	return p.predictor().Predict(flow), nil
}

// predictor returns the fitted interpolator, fitting one for values built
// outside Approximate.
func (p PiecewiseLinear) predictor() interp.PiecewiseLinear {
	if p.fitted {
		return p.fit
	}
	var pl interp.PiecewiseLinear
	_ = pl.Fit(p.BreakPoints, p.Values)
	return pl
}

// Range returns the lowest and highest loss values on the grid.
func (p PiecewiseLinear) Range() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, l := range p.Values {
		lo = math.Min(lo, l)
		hi = math.Max(hi, l)
	}
	return lo, hi
}

// MaxRelativeError samples n points per segment and returns the worst
// relative deviation from fn, ignoring points where |fn| is below floor.
func (p PiecewiseLinear) MaxRelativeError(fn model.LossFunction, n int, floor float64) float64 {
	var worst float64
	for i := 0; i+1 < len(p.BreakPoints); i++ {
		for k := 0; k <= n; k++ {
			x := p.BreakPoints[i] + (p.BreakPoints[i+1]-p.BreakPoints[i])*float64(k)/float64(n)
			exact := fn.Losses(x)
			if math.Abs(exact) < floor {
				continue
			}
			approx, err := p.Losses(x)
			if err != nil {
				continue
			}
			worst = math.Max(worst, math.Abs(approx-exact)/math.Abs(exact))
		}
	}
	return worst
}

// UniformGrid returns segments+1 evenly spaced break points over [lo, hi].
func UniformGrid(lo, hi float64, segments int) []float64 {
	if segments < 1 || hi <= lo {
		return nil
	}
	out := make([]float64, segments+1)
	step := (hi - lo) / float64(segments)
	for i := range out {
		out[i] = lo + step*float64(i)
	}
	out[segments] = hi
	return out
}
