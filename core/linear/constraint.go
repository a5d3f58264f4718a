package linear

import (
	"fmt"

	"github.com/kilianp07/spotmarket/core/model"
)

// Family names the origin of a constraint row.
type Family string

const (
	FamilyCapacity                 Family = "unit_capacity"
	FamilyRampUp                   Family = "ramp_up"
	FamilyRampDown                 Family = "ramp_down"
	FamilyFCASMaxAvailability      Family = "fcas_max_availability"
	FamilyEnergyRegulationCapacity Family = "energy_regulation_capacity"
	FamilyJointRamping             Family = "joint_ramping"
	FamilyJointCapacity            Family = "joint_capacity"
	FamilyDemand                   Family = "demand"
	FamilyFCASRequirement          Family = "fcas_requirement"
	FamilyLossModel                Family = "loss_model"
)

// Key identifies the entity a constraint belongs to.
type Key struct {
	Unit    string
	Region  string
	Service model.Service
	// Set holds a requirement set or interconnector id.
	Set  string
	Side string
}

// Term is one non-zero coefficient of a row.
type Term struct {
	Var  int
	Coef float64
}

// Constraint is a sparse row: sum(Coef*x[Var]) Sense RHS.
type Constraint struct {
	ID     int
	Family Family
	Key    Key
	// Regions lists the regions covered by a requirement set.
	Regions []string
	Terms   []Term
	Sense   model.Sense
	RHS     float64
	// Priced marks rows whose duals are read back as market prices.
	Priced bool
}

// Name returns a stable identifier usable in exported model files.
func (c Constraint) Name() string {
	parts := string(c.Family)
	for _, p := range []string{c.Key.Unit, c.Key.Region, string(c.Key.Service), c.Key.Set, c.Key.Side} {
		if p != "" {
			parts += "_" + p
		}
	}
	return fmt.Sprintf("%s_%d", parts, c.ID)
}

// Activity evaluates the left-hand side at x.
func (c Constraint) Activity(x []float64) float64 {
	var s float64
	for _, t := range c.Terms {
		s += t.Coef * x[t.Var]
	}
	return s
}

// Satisfied reports whether x meets the row within tol.
func (c Constraint) Satisfied(x []float64, tol float64) bool {
	a := c.Activity(x)
	switch c.Sense {
	case model.LessEq:
		return a <= c.RHS+tol
	case model.GreaterEq:
		return a >= c.RHS-tol
	default:
		return a >= c.RHS-tol && a <= c.RHS+tol
	}
}
