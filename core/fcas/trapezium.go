// Package fcas derives the linear inequalities that bound joint energy and
// FCAS dispatch of a unit from its FCAS trapezium.
package fcas

import (
	"fmt"
	"math"

	"github.com/kilianp07/spotmarket/core/model"
)

// Side names an edge of the trapezium.
type Side string

const (
	Top    Side = "top"
	Lower  Side = "lower_slope"
	Upper  Side = "upper_slope"
	Bottom Side = "bottom"
	Ramp   Side = "ramp"
)

// Inequality is Energy*energy + FCAS*fcas + Regulation*reg (Sense) RHS, where
// energy is the unit's energy dispatch, fcas its dispatch of the trapezium's
// service and reg its dispatch of the regulation service in the same
// direction.
type Inequality struct {
	Side       Side
	Energy     float64
	FCAS       float64
	Regulation float64
	Sense      model.Sense
	RHS        float64
	// Bound marks inequalities already implied by variable bounds.
	Bound bool
}

// Eval reports whether the point satisfies the inequality within tol.
func (q Inequality) Eval(energy, fcas, reg, tol float64) bool {
	lhs := q.Energy*energy + q.FCAS*fcas + q.Regulation*reg
	switch q.Sense {
	case model.LessEq:
		return lhs <= q.RHS+tol
	case model.GreaterEq:
		return lhs >= q.RHS-tol
	default:
		return math.Abs(lhs-q.RHS) <= tol
	}
}

// LowerSlopeCoefficient is the MW of energy headroom above EnablementMin
// consumed per MW of FCAS on the left edge.
func LowerSlopeCoefficient(t model.FCASTrapezium) float64 {
	if t.MaxAvailability == 0 {
		return 0
	}
	return (t.LowBreakPoint - t.EnablementMin) / t.MaxAvailability
}

// UpperSlopeCoefficient is the MW of energy headroom below EnablementMax
// consumed per MW of FCAS on the right edge.
func UpperSlopeCoefficient(t model.FCASTrapezium) float64 {
	if t.MaxAvailability == 0 {
		return 0
	}
	return (t.EnablementMax - t.HighBreakPoint) / t.MaxAvailability
}

// Sides returns the four edges of the trapezium as inequalities. A vertical
// edge (low == min or high == max) gives a zero FCAS coefficient, i.e. a plain
// energy bound. A trapezium without availability only keeps fcas <= 0.
func Sides(t model.FCASTrapezium) ([]Inequality, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	out := []Inequality{
		{Side: Top, FCAS: 1, Sense: model.LessEq, RHS: t.MaxAvailability},
		{Side: Bottom, FCAS: 1, Sense: model.GreaterEq, RHS: 0, Bound: true},
	}
	if t.MaxAvailability == 0 {
		return out, nil
	}
	return append(out,
		Inequality{Side: Lower, Energy: 1, FCAS: -LowerSlopeCoefficient(t), Sense: model.GreaterEq, RHS: t.EnablementMin},
		Inequality{Side: Upper, Energy: 1, FCAS: UpperSlopeCoefficient(t), Sense: model.LessEq, RHS: t.EnablementMax},
	), nil
}

// JointCapacitySides returns the contingency trapezium edges with the
// regulation service of the same direction stacked on the edge it competes
// with: raise regulation shares headroom under EnablementMax, lower
// regulation shares footroom above EnablementMin.
func JointCapacitySides(t model.FCASTrapezium) ([]Inequality, error) {
	if !t.Service.IsContingency() {
		return nil, model.NewValidationError("joint_capacity", t.Unit+"/"+string(t.Service), "service is not a contingency service")
	}
	sides, err := Sides(t)
	if err != nil {
		return nil, err
	}
	for i := range sides {
		switch {
		case sides[i].Side == Upper && t.Service.IsRaise():
			sides[i].Regulation = 1
		case sides[i].Side == Lower && !t.Service.IsRaise():
			sides[i].Regulation = -1
		}
	}
	return sides, nil
}

// JointRamping couples a regulation service to the energy ramp: a unit can
// not ramp towards its energy target and hold the full regulation band in the
// same direction. The returned inequality has FCAS as the regulation term.
func JointRamping(service model.Service, limits model.OperatingLimits, intervalMinutes float64) (Inequality, error) {
	if !service.IsRegulation() {
		return Inequality{}, model.NewValidationError("joint_ramping", limits.Unit+"/"+string(service), "service is not a regulation service")
	}
	if service.IsRaise() {
		return Inequality{Side: Ramp, Energy: 1, FCAS: 1, Sense: model.LessEq,
			RHS: limits.InitialOutput + limits.RampUpRate*intervalMinutes/60}, nil
	}
	return Inequality{Side: Ramp, Energy: 1, FCAS: -1, Sense: model.GreaterEq,
		RHS: limits.InitialOutput - limits.RampDownRate*intervalMinutes/60}, nil
}

// Availability returns the most FCAS the trapezium allows at the given energy
// dispatch, zero when energy lies outside the enablement range.
func Availability(t model.FCASTrapezium, energy float64) float64 {
	if energy < t.EnablementMin || energy > t.EnablementMax {
		return 0
	}
	avail := t.MaxAvailability
	if c := LowerSlopeCoefficient(t); c > 0 {
		avail = math.Min(avail, (energy-t.EnablementMin)/c)
	}
	if c := UpperSlopeCoefficient(t); c > 0 {
		avail = math.Min(avail, (t.EnablementMax-energy)/c)
	}
	return math.Max(avail, 0)
}

func (q Inequality) String() string {
	return fmt.Sprintf("%s: %g*energy %+g*fcas %+g*reg %s %g", q.Side, q.Energy, q.FCAS, q.Regulation, q.Sense, q.RHS)
}
