package constraints

import (
	"github.com/kilianp07/spotmarket/core/fcas"
	"github.com/kilianp07/spotmarket/core/linear"
	"github.com/kilianp07/spotmarket/core/model"
)

// Capacity caps each unit's energy dispatch.
func (b *Builder) Capacity(rows []model.UnitCapacity) error {
	for _, r := range rows {
		if _, err := b.energyUnit(string(linear.FamilyCapacity), r.Unit); err != nil {
			return err
		}
		err := b.add(linear.Constraint{
			Family: linear.FamilyCapacity,
			Key:    linear.Key{Unit: r.Unit, Service: model.Energy},
			Terms:  b.terms(nil, r.Unit, model.Energy, 1),
			Sense:  model.LessEq,
			RHS:    r.Capacity,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// RampUp bounds energy dispatch by initial output plus the ramp over the interval.
func (b *Builder) RampUp(rows []model.RampLimit) error {
	return b.ramp(linear.FamilyRampUp, rows, model.LessEq, 1)
}

// RampDown bounds energy dispatch by initial output minus the ramp over the interval.
func (b *Builder) RampDown(rows []model.RampLimit) error {
	return b.ramp(linear.FamilyRampDown, rows, model.GreaterEq, -1)
}

func (b *Builder) ramp(family linear.Family, rows []model.RampLimit, sense model.Sense, dir float64) error {
	for _, r := range rows {
		if _, err := b.energyUnit(string(family), r.Unit); err != nil {
			return err
		}
		err := b.add(linear.Constraint{
			Family: family,
			Key:    linear.Key{Unit: r.Unit, Service: model.Energy},
			Terms:  b.terms(nil, r.Unit, model.Energy, 1),
			Sense:  sense,
			RHS:    r.InitialOutput + dir*r.Rate*b.minutes/60,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// FCASMaxAvailability caps the FCAS a unit provides per service.
func (b *Builder) FCASMaxAvailability(rows []model.FCASAvailability) error {
	for _, r := range rows {
		if _, err := b.unit(string(linear.FamilyFCASMaxAvailability), r.Unit); err != nil {
			return err
		}
		if !b.reg.HasService(r.Unit, r.Service) {
			b.skip(string(linear.FamilyFCASMaxAvailability), r.Unit, r.Service)
			continue
		}
		err := b.add(linear.Constraint{
			Family: linear.FamilyFCASMaxAvailability,
			Key:    linear.Key{Unit: r.Unit, Service: r.Service},
			Terms:  b.terms(nil, r.Unit, r.Service, 1),
			Sense:  model.LessEq,
			RHS:    r.MaxAvailability,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// EnergyRegulationCapacity adds every side of the regulation trapeziums.
func (b *Builder) EnergyRegulationCapacity(rows []model.FCASTrapezium) error {
	return b.trapeziums(linear.FamilyEnergyRegulationCapacity, rows, fcas.Sides)
}

// JointCapacity adds the contingency trapeziums with regulation stacked on the
// competing side.
func (b *Builder) JointCapacity(rows []model.FCASTrapezium) error {
	return b.trapeziums(linear.FamilyJointCapacity, rows, fcas.JointCapacitySides)
}

func (b *Builder) trapeziums(family linear.Family, rows []model.FCASTrapezium, sides func(model.FCASTrapezium) ([]fcas.Inequality, error)) error {
	for _, t := range rows {
		if _, err := b.unit(string(family), t.Unit); err != nil {
			return err
		}
		if !b.reg.HasService(t.Unit, t.Service) {
			b.skip(string(family), t.Unit, t.Service)
			continue
		}
		ineqs, err := sides(t)
		if err != nil {
			return err
		}
		for _, q := range ineqs {
			if q.Bound {
				continue
			}
			terms := b.terms(nil, t.Unit, model.Energy, q.Energy)
			terms = b.terms(terms, t.Unit, t.Service, q.FCAS)
			if q.Regulation != 0 {
				terms = b.terms(terms, t.Unit, t.Service.Regulation(), q.Regulation)
			}
			err := b.add(linear.Constraint{
				Family: family,
				Key:    linear.Key{Unit: t.Unit, Service: t.Service, Side: string(q.Side)},
				Terms:  terms,
				Sense:  q.Sense,
				RHS:    q.RHS,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// JointRamping couples energy and regulation to the unit's ramp rates.
func (b *Builder) JointRamping(rows []model.OperatingLimits) error {
	for _, r := range rows {
		if _, err := b.energyUnit(string(linear.FamilyJointRamping), r.Unit); err != nil {
			return err
		}
		for _, svc := range []model.Service{model.RaiseReg, model.LowerReg} {
			if !b.reg.HasService(r.Unit, svc) {
				continue
			}
			q, err := fcas.JointRamping(svc, r, b.minutes)
			if err != nil {
				return err
			}
			terms := b.terms(nil, r.Unit, model.Energy, q.Energy)
			terms = b.terms(terms, r.Unit, svc, q.FCAS)
			err = b.add(linear.Constraint{
				Family: linear.FamilyJointRamping,
				Key:    linear.Key{Unit: r.Unit, Service: svc},
				Terms:  terms,
				Sense:  q.Sense,
				RHS:    q.RHS,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}
