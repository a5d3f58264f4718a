// Package constraints turns validated input tables into the rows of the
// dispatch LP, one builder method per constraint family.
//
// Variables are allocated on the shared registry while rows are buffered, so
// Model can freeze every variable before the rows reference them.
package constraints

import (
	"fmt"
	"sort"

	"github.com/kilianp07/spotmarket/core/linear"
	"github.com/kilianp07/spotmarket/core/model"
	"github.com/kilianp07/spotmarket/core/solver"
)

// DefaultIntervalMinutes is the dispatch interval length used for ramp rows.
const DefaultIntervalMinutes = 5

// Builder accumulates the constraints of one interval.
type Builder struct {
	reg     *linear.Registry
	units   []model.Unit
	byID    map[string]model.Unit
	minutes float64
	rows    []linear.Constraint
	links   []link
	skipped []string
}

// New returns a Builder over the registry's bid variables. intervalMinutes
// scales ramp rates; zero selects DefaultIntervalMinutes.
func New(reg *linear.Registry, units []model.Unit, intervalMinutes float64) *Builder {
	if intervalMinutes <= 0 {
		intervalMinutes = DefaultIntervalMinutes
	}
	byID := make(map[string]model.Unit, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}
	sorted := append([]model.Unit(nil), units...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &Builder{reg: reg, units: sorted, byID: byID, minutes: intervalMinutes}
}

// IntervalMinutes returns the interval length ramp rows are scaled with.
func (b *Builder) IntervalMinutes() float64 { return b.minutes }

// Rows returns the buffered constraints.
func (b *Builder) Rows() []linear.Constraint { return b.rows }

// Skipped lists table rows that produced no constraint: the unit has no bids
// for the service they restrict, or the row has no variable and 0 meets it.
func (b *Builder) Skipped() []string { return b.skipped }

// Model freezes the registry and attaches every buffered row.
func (b *Builder) Model() *linear.Model {
	m := linear.NewModel(b.reg)
	for _, c := range b.rows {
		m.AddConstraint(c)
	}
	return m
}

func (b *Builder) unit(table, id string) (model.Unit, error) {
	u, ok := b.byID[id]
	if !ok {
		return model.Unit{}, model.NewValidationError(table, id, "unknown unit")
	}
	return u, nil
}

// energyUnit resolves a unit that an energy-family row applies to.
func (b *Builder) energyUnit(table, id string) (model.Unit, error) {
	u, err := b.unit(table, id)
	if err != nil {
		return u, err
	}
	if !b.reg.HasService(id, model.Energy) {
		return u, model.NewValidationError(table, id, "unit has no energy bids")
	}
	return u, nil
}

func (b *Builder) skip(table, unit string, service model.Service) {
	b.skipped = append(b.skipped, fmt.Sprintf("%s: %s/%s has no bids", table, unit, service))
}

// terms sums the bands of a unit's service with coefficient coef; a zero
// coefficient or a service without bids adds nothing.
func (b *Builder) terms(dst []linear.Term, unit string, service model.Service, coef float64) []linear.Term {
	if coef == 0 {
		return dst
	}
	return append(dst, b.reg.Sum(unit, service, coef)...)
}

// EmptyRowError is a row left without variables that 0 cannot satisfy. It
// matches both model.ErrValidation and solver.ErrInfeasible.
type EmptyRowError struct {
	Err *model.ValidationError
}

func (e *EmptyRowError) Error() string { return e.Err.Error() }

func (e *EmptyRowError) Unwrap() []error { return []error{e.Err, solver.ErrInfeasible} }

// add drops zero coefficients and buffers the row. A row left without terms
// is skipped when 0 satisfies it and rejected with an EmptyRowError otherwise.
func (b *Builder) add(c linear.Constraint) error {
	terms := make([]linear.Term, 0, len(c.Terms))
	for _, t := range c.Terms {
		if t.Coef != 0 {
			terms = append(terms, t)
		}
	}
	c.Terms = terms
	if len(terms) == 0 {
		if c.Satisfied(nil, 1e-9) {
			b.skipped = append(b.skipped, fmt.Sprintf("%s: %s has no variables", c.Family, c.Name()))
			return nil
		}
		return &EmptyRowError{Err: model.NewValidationError(string(c.Family), c.Name(),
			fmt.Sprintf("no variable can satisfy %s %v", c.Sense, c.RHS))}
	}
	b.rows = append(b.rows, c)
	return nil
}
