package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kilianp07/spotmarket/core/linear"
	"github.com/kilianp07/spotmarket/core/model"
	"github.com/kilianp07/spotmarket/core/pricing"
	"github.com/kilianp07/spotmarket/core/solver"
)

// InfeasibleError reports an LP without a feasible dispatch and the
// constraint families that were active.
type InfeasibleError struct {
	Interval string
	Families []linear.Family
}

func (e *InfeasibleError) Error() string {
	names := make([]string, len(e.Families))
	for i, f := range e.Families {
		names[i] = string(f)
	}
	return fmt.Sprintf("interval %q infeasible with constraint families [%s]", e.Interval, strings.Join(names, ", "))
}

// Unwrap makes errors.Is(err, solver.ErrInfeasible) succeed.
func (e *InfeasibleError) Unwrap() error { return solver.ErrInfeasible }

type solved struct {
	model    *linear.Model
	solution solver.Solution
	energy   map[string]float64
	fcas     map[model.UnitService]float64
	prices   *pricing.Extractor
	result   model.DispatchResult
}

// Dispatch assembles and solves the interval. On failure the market keeps its
// tables and stays Configured.
func (m *SpotMarket) Dispatch(ctx context.Context) error {
	if m.state == Empty {
		return fmt.Errorf("%w: no tables set", ErrIncompleteModel)
	}
	m.solved = nil
	m.state = Configured
	start := time.Now()

	a, err := m.assemble()
	if err != nil {
		m.observe(model.StatusInvalid, time.Since(start))
		return err
	}
	sol, err := m.solver.Solve(ctx, a.model)
	if err != nil {
		status := solver.StatusOf(err)
		m.observe(status, time.Since(start))
		if errors.Is(err, solver.ErrInfeasible) {
			err = &InfeasibleError{Interval: m.interval, Families: a.model.Families()}
		}
		m.logger.Errorf("dispatch %s failed: %v", m.interval, err)
		return err
	}
	if len(sol.Primal) != len(a.model.Variables) {
		err := &solver.Error{Backend: "market", Err: fmt.Errorf("%d primal values for %d variables", len(sol.Primal), len(a.model.Variables))}
		m.observe(model.StatusError, time.Since(start))
		return err
	}
	ext, err := pricing.New(a.model, sol)
	if err != nil {
		m.observe(model.StatusError, time.Since(start))
		return &solver.Error{Backend: "market", Err: err}
	}

	s := &solved{
		model:    a.model,
		solution: sol,
		energy:   make(map[string]float64),
		fcas:     make(map[model.UnitService]float64),
		prices:   ext,
	}
	for _, v := range a.model.Variables {
		if v.Kind != linear.KindBid {
			continue
		}
		if v.Service == model.Energy {
			s.energy[v.Unit] += sol.Primal[v.ID]
		} else {
			s.fcas[model.UnitService{Unit: v.Unit, Service: v.Service}] += sol.Primal[v.ID]
		}
	}
	flows := make([]model.InterconnectorFlow, len(a.links))
	for i, l := range a.links {
		flows[i] = model.InterconnectorFlow{Interconnector: l.Interconnector.ID, Flow: sol.Primal[l.FlowVar]}
		if l.LossVar >= 0 {
			flows[i].Losses = sol.Primal[l.LossVar]
		}
	}
	s.result = model.DispatchResult{
		Interval:        m.interval,
		Status:          model.StatusOptimal,
		Objective:       sol.Objective,
		Dispatch:        s.dispatchRows(),
		Prices:          ext.Prices(),
		Interconnectors: flows,
		SolveTime:       sol.Duration,
		SolvedAt:        time.Now().UTC(),
	}
	m.solved = s
	m.state = Dispatched
	m.observe(model.StatusOptimal, time.Since(start))
	m.logger.Infof("dispatched %s: objective %.2f, %d variables, %d constraints in %s",
		m.interval, sol.Objective, len(a.model.Variables), len(a.model.Constraints), sol.Duration)
	return nil
}

func (s *solved) dispatchRows() []model.UnitDispatch {
	out := make([]model.UnitDispatch, 0, len(s.energy)+len(s.fcas))
	for u, d := range s.energy {
		out = append(out, model.UnitDispatch{Unit: u, Service: model.Energy, Dispatch: d})
	}
	for k, d := range s.fcas {
		out = append(out, model.UnitDispatch{Unit: k.Unit, Service: k.Service, Dispatch: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Unit != out[j].Unit {
			return out[i].Unit < out[j].Unit
		}
		return out[i].Service < out[j].Service
	})
	return out
}

func (m *SpotMarket) current() (*solved, error) {
	if m.state != Dispatched || m.solved == nil {
		return nil, ErrNotDispatched
	}
	return m.solved, nil
}

// EnergyDispatch returns the energy dispatch of every unit with energy bids.
func (m *SpotMarket) EnergyDispatch() (map[string]float64, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return copyMap(s.energy), nil
}

// FCASDispatch returns the dispatch of every unit and FCAS service bid.
func (m *SpotMarket) FCASDispatch() (map[model.UnitService]float64, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return copyMap(s.fcas), nil
}

// EnergyPrices returns the energy price of every region with a demand row.
// A region with zero demand and no units or interconnectors has no balance
// row, so it is absent from the map.
func (m *SpotMarket) EnergyPrices() (map[string]float64, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return s.prices.EnergyPrices(), nil
}

// FCASPrices returns the price of each FCAS service in each region covered by
// a requirement set.
func (m *SpotMarket) FCASPrices() (map[model.RegionService]float64, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return s.prices.FCASPrices(), nil
}

// InterconnectorFlows returns the flow and losses of every interconnector.
func (m *SpotMarket) InterconnectorFlows() ([]model.InterconnectorFlow, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return clone(s.result.Interconnectors), nil
}

// ObjectiveValue returns the optimal cost of the dispatch.
func (m *SpotMarket) ObjectiveValue() (float64, error) {
	s, err := m.current()
	if err != nil {
		return 0, err
	}
	return s.solution.Objective, nil
}

// Result returns the full outcome of the last successful dispatch.
func (m *SpotMarket) Result() (model.DispatchResult, error) {
	s, err := m.current()
	if err != nil {
		return model.DispatchResult{}, err
	}
	r := s.result
	r.Dispatch = clone(r.Dispatch)
	r.Prices = clone(r.Prices)
	r.Interconnectors = clone(r.Interconnectors)
	return r, nil
}

// Model returns the LP of the last successful dispatch.
func (m *SpotMarket) Model() (*linear.Model, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return s.model, nil
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
