package constraints

import (
	"math"

	"github.com/kilianp07/spotmarket/core/linear"
	"github.com/kilianp07/spotmarket/core/model"
)

// Demand adds one balance row per region:
//
//	generation - load + imports - exports - attributed losses (+ deficit) = demand
//
// Every unit with energy bids and every interconnector end must lie in a
// region of the table. A positive violation price adds a deficit variable
// bounded by the demand.
func (b *Builder) Demand(rows []model.RegionDemand, violationPrice float64) error {
	terms := make(map[string][]linear.Term, len(rows))
	for _, r := range rows {
		terms[r.Region] = nil
	}
	for _, u := range b.units {
		if !b.reg.HasService(u.ID, model.Energy) {
			continue
		}
		t, ok := terms[u.Region]
		if !ok {
			return model.NewValidationError(string(linear.FamilyDemand), u.ID, "region "+u.Region+" has no demand row")
		}
		terms[u.Region] = b.terms(t, u.ID, model.Energy, u.EnergySign())
	}
	for _, l := range b.links {
		from, okFrom := terms[l.ic.FromRegion]
		to, okTo := terms[l.ic.ToRegion]
		if !okFrom || !okTo {
			return model.NewValidationError(string(linear.FamilyDemand), l.ic.ID, "interconnector region has no demand row")
		}
		from = append(from, linear.Term{Var: l.flow, Coef: -1})
		to = append(to, linear.Term{Var: l.flow, Coef: 1})
		if l.loss >= 0 {
			from = append(from, linear.Term{Var: l.loss, Coef: -l.share})
			to = append(to, linear.Term{Var: l.loss, Coef: -(1 - l.share)})
		}
		terms[l.ic.FromRegion] = from
		terms[l.ic.ToRegion] = to
	}
	for _, r := range rows {
		t := terms[r.Region]
		if violationPrice > 0 {
			d := b.reg.Add(linear.Variable{Kind: linear.KindDeficit, Entity: r.Region, Upper: math.Max(r.Demand, 0), Cost: violationPrice})
			t = append(t, linear.Term{Var: d, Coef: 1})
		}
		err := b.add(linear.Constraint{
			Family: linear.FamilyDemand,
			Key:    linear.Key{Region: r.Region, Service: model.Energy},
			Terms:  t,
			Sense:  model.Equal,
			RHS:    r.Demand,
			Priced: true,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// FCASRequirements adds one row per requirement set summing the service bands
// of every unit located in one of the set's regions. A positive violation
// price adds a deficit variable bounded by the volume to ">=" and "=" sets.
func (b *Builder) FCASRequirements(sets []model.RequirementSet, violationPrice float64) error {
	regions := make(map[string]struct{})
	for _, u := range b.units {
		regions[u.Region] = struct{}{}
	}
	for _, l := range b.links {
		regions[l.ic.FromRegion] = struct{}{}
		regions[l.ic.ToRegion] = struct{}{}
	}
	for _, s := range sets {
		in := make(map[string]struct{}, len(s.Regions))
		for _, r := range s.Regions {
			if _, ok := regions[r]; !ok {
				return model.NewValidationError(string(linear.FamilyFCASRequirement), s.Set, "unknown region "+r)
			}
			in[r] = struct{}{}
		}
		var terms []linear.Term
		for _, u := range b.units {
			if _, ok := in[u.Region]; ok {
				terms = b.terms(terms, u.ID, s.Service, 1)
			}
		}
		if violationPrice > 0 && s.Type != model.LessEq {
			d := b.reg.Add(linear.Variable{Kind: linear.KindDeficit, Entity: s.Set, Upper: s.Volume, Cost: violationPrice})
			terms = append(terms, linear.Term{Var: d, Coef: 1})
		}
		err := b.add(linear.Constraint{
			Family:  linear.FamilyFCASRequirement,
			Key:     linear.Key{Service: s.Service, Set: s.Set},
			Regions: append([]string(nil), s.Regions...),
			Terms:   terms,
			Sense:   s.Type,
			RHS:     s.Volume,
			Priced:  true,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
