// Package market implements the single-interval spot market: it collects the
// input tables, assembles the dispatch LP, solves it through a Solver and
// exposes dispatch quantities and prices.
//
// A SpotMarket moves from Empty to Configured on the first successful Set*
// call and to Dispatched after a successful Dispatch. Any later Set* call
// replaces its table and drops the solution.
package market

import (
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/spotmarket/core/constraints"
	"github.com/kilianp07/spotmarket/core/logger"
	"github.com/kilianp07/spotmarket/core/model"
	"github.com/kilianp07/spotmarket/core/solver"
)

var (
	// ErrIncompleteModel is returned when units, bids or demand are missing.
	ErrIncompleteModel = errors.New("market model incomplete")
	// ErrNotDispatched is returned by accessors without a successful dispatch.
	ErrNotDispatched = errors.New("market not dispatched")
)

// State is the lifecycle stage of a SpotMarket.
type State int

const (
	Empty State = iota
	Configured
	Dispatched
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Configured:
		return "configured"
	case Dispatched:
		return "dispatched"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Option customises a SpotMarket.
type Option func(*SpotMarket)

// WithIntervalMinutes sets the dispatch interval length used by ramp rows.
func WithIntervalMinutes(minutes float64) Option {
	return func(m *SpotMarket) {
		if minutes > 0 {
			m.minutes = minutes
		}
	}
}

// WithInterval labels the results of this market, e.g. "2020/01/01 12:05:00".
func WithInterval(label string) Option {
	return func(m *SpotMarket) { m.interval = label }
}

// WithViolationPrices sets the relaxation prices used until
// SetConstraintViolationPrices replaces them.
func WithViolationPrices(p model.ViolationPrices) Option {
	return func(m *SpotMarket) { m.in.violation = p }
}

type tables struct {
	units           []model.Unit
	volumes         []model.VolumeBid
	prices          []model.PriceBid
	capacity        []model.UnitCapacity
	rampUp          []model.RampLimit
	rampDown        []model.RampLimit
	availability    []model.FCASAvailability
	regulation      []model.FCASTrapezium
	jointRamping    []model.OperatingLimits
	contingency     []model.FCASTrapezium
	demand          []model.RegionDemand
	requirements    []model.RequirementSet
	interconnectors []model.Interconnector
	losses          []model.InterconnectorLoss
	breakPoints     []model.BreakPoint
	violation       model.ViolationPrices
}

// SpotMarket is the market orchestrator of one dispatch interval. It is not
// safe for concurrent use.
type SpotMarket struct {
	solver   solver.Solver
	logger   logger.Logger
	minutes  float64
	interval string

	in     tables
	state  State
	solved *solved
}

// New creates an empty market solved by s.
func New(s solver.Solver, log logger.Logger, opts ...Option) (*SpotMarket, error) {
	if s == nil || log == nil {
		return nil, fmt.Errorf("market: nil parameter provided to New")
	}
	m := &SpotMarket{solver: s, logger: log, minutes: constraints.DefaultIntervalMinutes}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// State returns the lifecycle stage.
func (m *SpotMarket) State() State { return m.state }

// Interval returns the label of the interval.
func (m *SpotMarket) Interval() string { return m.interval }

// set applies a validated table and invalidates any solution.
func (m *SpotMarket) set(err error, apply func()) error {
	if err != nil {
		return err
	}
	apply()
	m.state = Configured
	m.solved = nil
	return nil
}

// SetUnitInfo replaces the unit table.
func (m *SpotMarket) SetUnitInfo(units []model.Unit) error {
	return m.set(model.ValidateUnits(units), func() { m.in.units = clone(units) })
}

// SetUnitVolumeBids replaces the band volumes of every unit and service.
func (m *SpotMarket) SetUnitVolumeBids(bids []model.VolumeBid) error {
	return m.set(model.ValidateVolumeBids(bids), func() { m.in.volumes = clone(bids) })
}

// SetUnitPriceBids replaces the band prices of every unit and service.
// Prices must not decrease with the band index.
func (m *SpotMarket) SetUnitPriceBids(bids []model.PriceBid) error {
	return m.set(model.ValidatePriceBids(bids), func() { m.in.prices = clone(bids) })
}

// SetUnitCapacityConstraints replaces the energy capacity table.
func (m *SpotMarket) SetUnitCapacityConstraints(rows []model.UnitCapacity) error {
	return m.set(model.ValidateCapacities(rows), func() { m.in.capacity = clone(rows) })
}

// SetUnitRampUpConstraints replaces the ramp up table. Rates are MW/h.
func (m *SpotMarket) SetUnitRampUpConstraints(rows []model.RampLimit) error {
	return m.set(model.ValidateRampLimits("ramp_up", rows), func() { m.in.rampUp = clone(rows) })
}

// SetUnitRampDownConstraints replaces the ramp down table. Rates are MW/h.
func (m *SpotMarket) SetUnitRampDownConstraints(rows []model.RampLimit) error {
	return m.set(model.ValidateRampLimits("ramp_down", rows), func() { m.in.rampDown = clone(rows) })
}

// SetFCASMaxAvailability replaces the FCAS availability caps.
func (m *SpotMarket) SetFCASMaxAvailability(rows []model.FCASAvailability) error {
	return m.set(model.ValidateAvailabilities(rows), func() { m.in.availability = clone(rows) })
}

// SetEnergyAndRegulationCapacityConstraints replaces the regulation trapeziums.
func (m *SpotMarket) SetEnergyAndRegulationCapacityConstraints(rows []model.FCASTrapezium) error {
	err := model.ValidateTrapeziums("energy_regulation_capacity", rows, model.Service.IsRegulation)
	return m.set(err, func() { m.in.regulation = clone(rows) })
}

// SetJointRampingConstraints replaces the ramp limits coupling energy and
// regulation. The capacity column is not used.
func (m *SpotMarket) SetJointRampingConstraints(rows []model.OperatingLimits) error {
	return m.set(model.ValidateOperatingLimits(rows), func() { m.in.jointRamping = clone(rows) })
}

// SetJointCapacityConstraints replaces the contingency trapeziums.
func (m *SpotMarket) SetJointCapacityConstraints(rows []model.FCASTrapezium) error {
	err := model.ValidateTrapeziums("joint_capacity", rows, model.Service.IsContingency)
	return m.set(err, func() { m.in.contingency = clone(rows) })
}

// SetDemandConstraints replaces the regional demand table.
func (m *SpotMarket) SetDemandConstraints(rows []model.RegionDemand) error {
	return m.set(model.ValidateDemand(rows), func() { m.in.demand = clone(rows) })
}

// SetFCASRequirementsConstraints replaces the FCAS requirement sets.
func (m *SpotMarket) SetFCASRequirementsConstraints(rows []model.FCASRequirement) error {
	sets, err := model.GroupRequirements(rows)
	return m.set(err, func() { m.in.requirements = sets })
}

// SetInterconnectors replaces the interconnector table.
func (m *SpotMarket) SetInterconnectors(rows []model.Interconnector) error {
	return m.set(model.ValidateInterconnectors(rows), func() { m.in.interconnectors = clone(rows) })
}

// SetInterconnectorLosses replaces the loss models and their interpolation
// grids. Convexity and grid coverage are checked when the model is assembled.
func (m *SpotMarket) SetInterconnectorLosses(lossModels []model.InterconnectorLoss, breakPoints []model.BreakPoint) error {
	return m.set(validateLosses(lossModels, breakPoints), func() {
		m.in.losses = clone(lossModels)
		m.in.breakPoints = clone(breakPoints)
	})
}

// SetConstraintViolationPrices lets demand and FCAS requirement rows be
// violated at the given $/MW instead of making the model infeasible.
func (m *SpotMarket) SetConstraintViolationPrices(p model.ViolationPrices) error {
	var err error
	for name, v := range map[string]float64{"demand": p.Demand, "fcas": p.FCAS} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			err = model.NewValidationError("violation_prices", name, "price must be finite and non-negative")
		}
	}
	return m.set(err, func() { m.in.violation = p })
}

func validateLosses(lossModels []model.InterconnectorLoss, breakPoints []model.BreakPoint) error {
	seen := make(map[string]struct{}, len(lossModels))
	for _, l := range lossModels {
		if l.Interconnector == "" {
			return model.NewValidationError("interconnector_losses", "", "interconnector id is empty")
		}
		if _, dup := seen[l.Interconnector]; dup {
			return model.NewValidationError("interconnector_losses", l.Interconnector, "duplicate loss model")
		}
		seen[l.Interconnector] = struct{}{}
		if l.Function == nil {
			return model.NewValidationError("interconnector_losses", l.Interconnector, "loss function is nil")
		}
		if math.IsNaN(l.FromRegionLossShare) || l.FromRegionLossShare < 0 || l.FromRegionLossShare > 1 {
			return model.NewValidationError("interconnector_losses", l.Interconnector, "from_region_loss_share must be within [0, 1]")
		}
	}
	segments := make(map[string]map[int]struct{})
	for _, bp := range breakPoints {
		if _, ok := seen[bp.Interconnector]; !ok {
			return model.NewValidationError("break_points", bp.Interconnector, "no loss model for interconnector")
		}
		if math.IsNaN(bp.BreakPoint) || math.IsInf(bp.BreakPoint, 0) {
			return model.NewValidationError("break_points", bp.Interconnector, "break point is not finite")
		}
		if segments[bp.Interconnector] == nil {
			segments[bp.Interconnector] = make(map[int]struct{})
		}
		if _, dup := segments[bp.Interconnector][bp.Segment]; dup {
			return model.NewValidationError("break_points", bp.Interconnector, fmt.Sprintf("segment %d listed twice", bp.Segment))
		}
		segments[bp.Interconnector][bp.Segment] = struct{}{}
	}
	return nil
}

func clone[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return append(make([]T, 0, len(in)), in...)
}
