package linear

import (
	"fmt"
	"math"
	"sort"
)

// Model is an assembled LP: minimise sum(Cost*x) subject to Constraints and
// variable bounds.
type Model struct {
	Variables   []Variable
	Constraints []Constraint
}

// NewModel freezes the registry's variables into a model.
func NewModel(r *Registry) *Model {
	return &Model{Variables: r.Variables()}
}

// AddConstraint appends c, assigning its id.
func (m *Model) AddConstraint(c Constraint) int {
	c.ID = len(m.Constraints)
	m.Constraints = append(m.Constraints, c)
	return c.ID
}

// Objective evaluates the objective at x.
func (m *Model) Objective(x []float64) float64 {
	var s float64
	for i, v := range m.Variables {
		s += v.Cost * x[i]
	}
	return s
}

// Validate checks that every variable has finite ordered bounds and every row
// references known variables with finite coefficients.
func (m *Model) Validate() error {
	if len(m.Variables) == 0 {
		return fmt.Errorf("model has no variables")
	}
	for i, v := range m.Variables {
		if v.ID != i {
			return fmt.Errorf("variable %s has id %d at position %d", v.Name(), v.ID, i)
		}
		if math.IsNaN(v.Lower) || math.IsNaN(v.Upper) || math.IsInf(v.Lower, 0) || math.IsInf(v.Upper, 0) {
			return fmt.Errorf("variable %s has non-finite bounds", v.Name())
		}
		if v.Lower > v.Upper {
			return fmt.Errorf("variable %s has lower bound %v above upper bound %v", v.Name(), v.Lower, v.Upper)
		}
		if math.IsNaN(v.Cost) || math.IsInf(v.Cost, 0) {
			return fmt.Errorf("variable %s has non-finite cost", v.Name())
		}
	}
	for _, c := range m.Constraints {
		if len(c.Terms) == 0 {
			return fmt.Errorf("constraint %s has no terms", c.Name())
		}
		if !c.Sense.Valid() {
			return fmt.Errorf("constraint %s has unknown sense %q", c.Name(), c.Sense)
		}
		if math.IsNaN(c.RHS) || math.IsInf(c.RHS, 0) {
			return fmt.Errorf("constraint %s has non-finite rhs", c.Name())
		}
		for _, t := range c.Terms {
			if t.Var < 0 || t.Var >= len(m.Variables) {
				return fmt.Errorf("constraint %s references unknown variable %d", c.Name(), t.Var)
			}
			if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
				return fmt.Errorf("constraint %s has non-finite coefficient", c.Name())
			}
		}
	}
	return nil
}

// Families returns the distinct constraint families in the model, sorted.
func (m *Model) Families() []Family {
	seen := make(map[Family]struct{})
	for _, c := range m.Constraints {
		seen[c.Family] = struct{}{}
	}
	out := make([]Family, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Violations lists the rows and bounds x breaks by more than tol.
func (m *Model) Violations(x []float64, tol float64) []string {
	var out []string
	for i, v := range m.Variables {
		if x[i] < v.Lower-tol || x[i] > v.Upper+tol {
			out = append(out, fmt.Sprintf("%s=%v outside [%v, %v]", v.Name(), x[i], v.Lower, v.Upper))
		}
	}
	for _, c := range m.Constraints {
		if !c.Satisfied(x, tol) {
			out = append(out, fmt.Sprintf("%s: %v %s %v", c.Name(), c.Activity(x), c.Sense, c.RHS))
		}
	}
	return out
}
