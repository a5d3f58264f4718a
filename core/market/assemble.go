package market

import (
	"fmt"

	"github.com/kilianp07/spotmarket/core/constraints"
	"github.com/kilianp07/spotmarket/core/linear"
)

// assembled is a model plus the indexes needed to read its solution back.
type assembled struct {
	model *linear.Model
	links []constraints.Link
}

// Assemble validates the tables against each other and builds the LP. It
// does not change the market state.
func (m *SpotMarket) Assemble() (*linear.Model, error) {
	a, err := m.assemble()
	if err != nil {
		return nil, err
	}
	return a.model, nil
}

func (m *SpotMarket) assemble() (*assembled, error) {
	in := m.in
	switch {
	case len(in.units) == 0:
		return nil, fmt.Errorf("%w: no units", ErrIncompleteModel)
	case len(in.volumes) == 0 || len(in.prices) == 0:
		return nil, fmt.Errorf("%w: no bids", ErrIncompleteModel)
	case len(in.demand) == 0:
		return nil, fmt.Errorf("%w: no demand", ErrIncompleteModel)
	}

	reg := linear.NewRegistry()
	if err := constraints.RegisterBids(reg, in.units, in.volumes, in.prices); err != nil {
		return nil, err
	}
	b := constraints.New(reg, in.units, m.minutes)
	steps := []func() error{
		func() error { return b.Network(in.interconnectors, in.losses, in.breakPoints) },
		func() error { return b.Capacity(in.capacity) },
		func() error { return b.RampUp(in.rampUp) },
		func() error { return b.RampDown(in.rampDown) },
		func() error { return b.FCASMaxAvailability(in.availability) },
		func() error { return b.EnergyRegulationCapacity(in.regulation) },
		func() error { return b.JointRamping(in.jointRamping) },
		func() error { return b.JointCapacity(in.contingency) },
		func() error { return b.Demand(in.demand, in.violation.Demand) },
		func() error { return b.FCASRequirements(in.requirements, in.violation.FCAS) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	lp := b.Model()
	if err := lp.Validate(); err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	for _, s := range b.Skipped() {
		m.logger.Debugf("%s", s)
	}
	m.logger.Debugw("model assembled", map[string]any{
		"interval":    m.interval,
		"variables":   len(lp.Variables),
		"constraints": len(lp.Constraints),
		"families":    lp.Families(),
	})
	modelSize.WithLabelValues("variables").Set(float64(len(lp.Variables)))
	modelSize.WithLabelValues("constraints").Set(float64(len(lp.Constraints)))
	return &assembled{model: lp, links: b.Links()}, nil
}
