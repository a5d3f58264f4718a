package market

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/spotmarket/core/linear"
	"github.com/kilianp07/spotmarket/core/model"
	"github.com/kilianp07/spotmarket/core/solver"
	"github.com/kilianp07/spotmarket/infra/logger"
	"github.com/kilianp07/spotmarket/infra/lpsolver"
)

const eps = 1e-5

func newMarket(t *testing.T, opts ...Option) *SpotMarket {
	t.Helper()
	m, err := New(lpsolver.New(0, nil), logger.NopLogger{}, opts...)
	require.NoError(t, err)
	return m
}

// countingSolver records whether the LP reached the backend.
type countingSolver struct {
	calls int
	err   error
}

func (c *countingSolver) Solve(context.Context, *linear.Model) (solver.Solution, error) {
	c.calls++
	return solver.Solution{}, c.err
}

func energyBids(m *SpotMarket, t *testing.T, vol []model.VolumeBid, price []model.PriceBid) {
	t.Helper()
	require.NoError(t, m.SetUnitVolumeBids(vol))
	require.NoError(t, m.SetUnitPriceBids(price))
}

func TestTwoUnitMeritOrder(t *testing.T) {
	m := newMarket(t, WithInterval("2020/01/01 12:05:00"))
	require.NoError(t, m.SetUnitInfo([]model.Unit{{ID: "A", Region: "NSW"}, {ID: "B", Region: "NSW"}}))
	energyBids(m, t,
		[]model.VolumeBid{{Unit: "A", Bands: []float64{20, 20, 5}}, {Unit: "B", Bands: []float64{50, 30, 10}}},
		[]model.PriceBid{{Unit: "A", Bands: []float64{50, 60, 100}}, {Unit: "B", Bands: []float64{50, 55, 80}}})
	require.NoError(t, m.SetDemandConstraints([]model.RegionDemand{{Region: "NSW", Demand: 120}}))
	require.NoError(t, m.Dispatch(context.Background()))
	assert.Equal(t, Dispatched, m.State())

	energy, err := m.EnergyDispatch()
	require.NoError(t, err)
	assert.InDelta(t, 40, energy["A"], eps)
	assert.InDelta(t, 80, energy["B"], eps)

	prices, err := m.EnergyPrices()
	require.NoError(t, err)
	assert.InDelta(t, 60, prices["NSW"], eps)

	obj, err := m.ObjectiveValue()
	require.NoError(t, err)
	assert.InDelta(t, 20*50+20*60+50*50+30*55, obj, 1e-4)

	res, err := m.Result()
	require.NoError(t, err)
	assert.Equal(t, "2020/01/01 12:05:00", res.Interval)
	assert.Equal(t, model.StatusOptimal, res.Status)
	p, ok := res.Price("NSW", model.Energy)
	assert.True(t, ok)
	assert.InDelta(t, 60, p, eps)
}

func TestInterconnectorFlow(t *testing.T) {
	m := newMarket(t)
	require.NoError(t, m.SetUnitInfo([]model.Unit{{ID: "G1", Region: "NSW"}, {ID: "G2", Region: "QLD"}}))
	energyBids(m, t,
		[]model.VolumeBid{{Unit: "G1", Bands: []float64{100}}, {Unit: "G2", Bands: []float64{100}}},
		[]model.PriceBid{{Unit: "G1", Bands: []float64{20}}, {Unit: "G2", Bands: []float64{50}}})
	require.NoError(t, m.SetDemandConstraints([]model.RegionDemand{{Region: "NSW", Demand: 40}, {Region: "QLD", Demand: 50}}))
	require.NoError(t, m.SetInterconnectors([]model.Interconnector{{ID: "NSW1-QLD1", FromRegion: "NSW", ToRegion: "QLD", MinFlow: -30, MaxFlow: 30}}))
	require.NoError(t, m.Dispatch(context.Background()))

	energy, _ := m.EnergyDispatch()
	assert.InDelta(t, 70, energy["G1"], eps)
	assert.InDelta(t, 20, energy["G2"], eps)
	flows, err := m.InterconnectorFlows()
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.InDelta(t, 30, flows[0].Flow, eps)
	assert.Zero(t, flows[0].Losses)
	prices, _ := m.EnergyPrices()
	assert.InDelta(t, 20, prices["NSW"], eps)
	assert.InDelta(t, 50, prices["QLD"], eps)
}

func TestInterconnectorLossesBalance(t *testing.T) {
	m := newMarket(t)
	require.NoError(t, m.SetUnitInfo([]model.Unit{{ID: "G1", Region: "NSW"}, {ID: "G2", Region: "QLD"}}))
	energyBids(m, t,
		[]model.VolumeBid{{Unit: "G1", Bands: []float64{300}}, {Unit: "G2", Bands: []float64{300}}},
		[]model.PriceBid{{Unit: "G1", Bands: []float64{20}}, {Unit: "G2", Bands: []float64{50}}})
	require.NoError(t, m.SetDemandConstraints([]model.RegionDemand{{Region: "NSW", Demand: 50}, {Region: "QLD", Demand: 150}}))
	ic := model.Interconnector{ID: "NSW1-QLD1", FromRegion: "NSW", ToRegion: "QLD", MinFlow: -100, MaxFlow: 100}
	require.NoError(t, m.SetInterconnectors([]model.Interconnector{ic}))
	loss := model.LossFunc(func(f float64) float64 { return 0.0005 * f * f })
	require.NoError(t, m.SetInterconnectorLosses(
		[]model.InterconnectorLoss{{Interconnector: ic.ID, FromRegionLossShare: 0.5, Function: loss}}, nil))
	require.NoError(t, m.Dispatch(context.Background()))

	energy, _ := m.EnergyDispatch()
	flows, _ := m.InterconnectorFlows()
	require.Len(t, flows, 1)
	f := flows[0]
	assert.Greater(t, f.Flow, 0.0)
	assert.LessOrEqual(t, f.Flow, 100+eps)
	assert.GreaterOrEqual(t, f.Losses, loss(f.Flow)-eps, "interpolated losses overestimate a convex function")
	assert.InDelta(t, 50, energy["G1"]-f.Flow-0.5*f.Losses, eps)
	assert.InDelta(t, 150, energy["G2"]+f.Flow-0.5*f.Losses, eps)
}

func TestFCASCoOptimisation(t *testing.T) {
	m := newMarket(t)
	require.NoError(t, m.SetUnitInfo([]model.Unit{{ID: "A", Region: "NSW"}, {ID: "B", Region: "NSW"}}))
	energyBids(m, t,
		[]model.VolumeBid{
			{Unit: "A", Bands: []float64{100}}, {Unit: "A", Service: model.RaiseReg, Bands: []float64{20}},
			{Unit: "B", Bands: []float64{50}}, {Unit: "B", Service: model.RaiseReg, Bands: []float64{20}},
		},
		[]model.PriceBid{
			{Unit: "A", Bands: []float64{40}}, {Unit: "A", Service: model.RaiseReg, Bands: []float64{5}},
			{Unit: "B", Bands: []float64{80}}, {Unit: "B", Service: model.RaiseReg, Bands: []float64{15}},
		})
	require.NoError(t, m.SetUnitCapacityConstraints([]model.UnitCapacity{{Unit: "A", Capacity: 100}}))
	require.NoError(t, m.SetEnergyAndRegulationCapacityConstraints([]model.FCASTrapezium{{
		Unit: "A", Service: model.RaiseReg, MaxAvailability: 20,
		EnablementMin: 0, LowBreakPoint: 20, HighBreakPoint: 80, EnablementMax: 100,
	}}))
	require.NoError(t, m.SetDemandConstraints([]model.RegionDemand{{Region: "NSW", Demand: 95}}))
	require.NoError(t, m.SetFCASRequirementsConstraints([]model.FCASRequirement{
		{Set: "nsw_raise_reg", Service: model.RaiseReg, Region: "NSW", Volume: 10},
	}))
	require.NoError(t, m.Dispatch(context.Background()))

	energy, _ := m.EnergyDispatch()
	assert.InDelta(t, 95, energy["A"], eps)
	assert.InDelta(t, 0, energy["B"], eps)
	fcasDispatch, err := m.FCASDispatch()
	require.NoError(t, err)
	assert.InDelta(t, 5, fcasDispatch[model.UnitService{Unit: "A", Service: model.RaiseReg}], eps,
		"the upper slope leaves A only 5 MW of regulation headroom")
	assert.InDelta(t, 5, fcasDispatch[model.UnitService{Unit: "B", Service: model.RaiseReg}], eps)

	fcasPrices, err := m.FCASPrices()
	require.NoError(t, err)
	assert.InDelta(t, 15, fcasPrices[model.RegionService{Region: "NSW", Service: model.RaiseReg}], eps)
	prices, _ := m.EnergyPrices()
	assert.InDelta(t, 50, prices["NSW"], eps, "energy pays 40 plus the regulation it displaces")
}

func TestRampLimitsEnergy(t *testing.T) {
	m := newMarket(t)
	require.NoError(t, m.SetUnitInfo([]model.Unit{{ID: "A", Region: "NSW"}, {ID: "B", Region: "NSW"}}))
	energyBids(m, t,
		[]model.VolumeBid{{Unit: "A", Bands: []float64{100}}, {Unit: "B", Bands: []float64{100}}},
		[]model.PriceBid{{Unit: "A", Bands: []float64{20}}, {Unit: "B", Bands: []float64{50}}})
	require.NoError(t, m.SetUnitRampUpConstraints([]model.RampLimit{{Unit: "A", InitialOutput: 50, Rate: 120}}))
	require.NoError(t, m.SetUnitRampDownConstraints([]model.RampLimit{{Unit: "A", InitialOutput: 50, Rate: 120}}))
	require.NoError(t, m.SetDemandConstraints([]model.RegionDemand{{Region: "NSW", Demand: 100}}))
	require.NoError(t, m.Dispatch(context.Background()))

	energy, _ := m.EnergyDispatch()
	assert.InDelta(t, 60, energy["A"], eps)
	assert.InDelta(t, 40, energy["B"], eps)
	prices, _ := m.EnergyPrices()
	assert.InDelta(t, 50, prices["NSW"], eps)
}

func TestIntervalLengthScalesRamp(t *testing.T) {
	m := newMarket(t, WithIntervalMinutes(30))
	require.NoError(t, m.SetUnitInfo([]model.Unit{{ID: "A", Region: "NSW"}, {ID: "B", Region: "NSW"}}))
	energyBids(m, t,
		[]model.VolumeBid{{Unit: "A", Bands: []float64{100}}, {Unit: "B", Bands: []float64{100}}},
		[]model.PriceBid{{Unit: "A", Bands: []float64{20}}, {Unit: "B", Bands: []float64{50}}})
	require.NoError(t, m.SetUnitRampUpConstraints([]model.RampLimit{{Unit: "A", InitialOutput: 50, Rate: 60}}))
	require.NoError(t, m.SetDemandConstraints([]model.RegionDemand{{Region: "NSW", Demand: 100}}))
	require.NoError(t, m.Dispatch(context.Background()))
	energy, _ := m.EnergyDispatch()
	assert.InDelta(t, 80, energy["A"], eps)
}

func TestLoadConsumesWhenValued(t *testing.T) {
	m := newMarket(t)
	require.NoError(t, m.SetUnitInfo([]model.Unit{{ID: "G", Region: "NSW"}, {ID: "L", Region: "NSW", DispatchType: model.Load}}))
	energyBids(m, t,
		[]model.VolumeBid{{Unit: "G", Bands: []float64{100}}, {Unit: "L", Bands: []float64{30}}},
		[]model.PriceBid{{Unit: "G", Bands: []float64{50}}, {Unit: "L", Bands: []float64{70}}})
	require.NoError(t, m.SetDemandConstraints([]model.RegionDemand{{Region: "NSW", Demand: 50}}))
	require.NoError(t, m.Dispatch(context.Background()))

	energy, _ := m.EnergyDispatch()
	assert.InDelta(t, 80, energy["G"], eps)
	assert.InDelta(t, 30, energy["L"], eps)
	prices, _ := m.EnergyPrices()
	assert.InDelta(t, 50, prices["NSW"], eps)
}

func TestNonMonotonicPricesNeverReachSolver(t *testing.T) {
	s := &countingSolver{}
	m, err := New(s, logger.NopLogger{})
	require.NoError(t, err)
	err = m.SetUnitPriceBids([]model.PriceBid{{Unit: "A", Bands: []float64{50, 40}}})
	require.ErrorIs(t, err, model.ErrValidation)
	assert.Equal(t, Empty, m.State(), "a rejected table leaves the state untouched")

	require.ErrorIs(t, m.Dispatch(context.Background()), ErrIncompleteModel)
	assert.Zero(t, s.calls)
}

func TestCrossTableValidationBeforeSolve(t *testing.T) {
	s := &countingSolver{}
	m, err := New(s, logger.NopLogger{})
	require.NoError(t, err)
	require.NoError(t, m.SetUnitInfo([]model.Unit{{ID: "A", Region: "NSW"}, {ID: "B", Region: "VIC"}}))
	energyBids(m, t,
		[]model.VolumeBid{{Unit: "A", Bands: []float64{100}}, {Unit: "B", Bands: []float64{100}}},
		[]model.PriceBid{{Unit: "A", Bands: []float64{20}}, {Unit: "B", Bands: []float64{50}}})
	require.NoError(t, m.SetDemandConstraints([]model.RegionDemand{{Region: "NSW", Demand: 100}}))

	err = m.Dispatch(context.Background())
	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "B", verr.Entity)
	assert.Zero(t, s.calls)

	_, err = m.Assemble()
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestIncompleteModel(t *testing.T) {
	m := newMarket(t)
	require.ErrorIs(t, m.Dispatch(context.Background()), ErrIncompleteModel)
	require.NoError(t, m.SetUnitInfo([]model.Unit{{ID: "A", Region: "NSW"}}))
	energyBids(m, t, []model.VolumeBid{{Unit: "A", Bands: []float64{100}}}, []model.PriceBid{{Unit: "A", Bands: []float64{20}}})
	require.ErrorIs(t, m.Dispatch(context.Background()), ErrIncompleteModel)
}

func TestAccessorsRequireDispatch(t *testing.T) {
	m := newMarket(t)
	_, err := m.EnergyDispatch()
	require.ErrorIs(t, err, ErrNotDispatched)
	_, err = m.FCASDispatch()
	require.ErrorIs(t, err, ErrNotDispatched)
	_, err = m.EnergyPrices()
	require.ErrorIs(t, err, ErrNotDispatched)
	_, err = m.FCASPrices()
	require.ErrorIs(t, err, ErrNotDispatched)
	_, err = m.InterconnectorFlows()
	require.ErrorIs(t, err, ErrNotDispatched)
	_, err = m.ObjectiveValue()
	require.ErrorIs(t, err, ErrNotDispatched)
	_, err = m.Result()
	require.ErrorIs(t, err, ErrNotDispatched)
	_, err = m.Model()
	require.ErrorIs(t, err, ErrNotDispatched)
}

func TestSetAfterDispatchInvalidates(t *testing.T) {
	m := newMarket(t)
	require.NoError(t, m.SetUnitInfo([]model.Unit{{ID: "A", Region: "NSW"}}))
	energyBids(m, t, []model.VolumeBid{{Unit: "A", Bands: []float64{100}}}, []model.PriceBid{{Unit: "A", Bands: []float64{20}}})
	require.NoError(t, m.SetDemandConstraints([]model.RegionDemand{{Region: "NSW", Demand: 10}}))
	require.NoError(t, m.Dispatch(context.Background()))
	_, err := m.EnergyDispatch()
	require.NoError(t, err)

	require.NoError(t, m.SetDemandConstraints([]model.RegionDemand{{Region: "NSW", Demand: 30}}))
	assert.Equal(t, Configured, m.State())
	_, err = m.EnergyDispatch()
	require.ErrorIs(t, err, ErrNotDispatched)

	require.NoError(t, m.Dispatch(context.Background()))
	energy, _ := m.EnergyDispatch()
	assert.InDelta(t, 30, energy["A"], eps, "the second demand table replaced the first")
}

func TestInfeasibleDemand(t *testing.T) {
	m := newMarket(t, WithInterval("i1"))
	require.NoError(t, m.SetUnitInfo([]model.Unit{{ID: "A", Region: "NSW"}}))
	energyBids(m, t, []model.VolumeBid{{Unit: "A", Bands: []float64{100}}}, []model.PriceBid{{Unit: "A", Bands: []float64{20}}})
	require.NoError(t, m.SetUnitCapacityConstraints([]model.UnitCapacity{{Unit: "A", Capacity: 80}}))
	require.NoError(t, m.SetDemandConstraints([]model.RegionDemand{{Region: "NSW", Demand: 90}}))

	err := m.Dispatch(context.Background())
	require.ErrorIs(t, err, solver.ErrInfeasible)
	var inf *InfeasibleError
	require.True(t, errors.As(err, &inf))
	assert.Equal(t, []linear.Family{linear.FamilyDemand, linear.FamilyCapacity}, inf.Families)
	assert.Equal(t, Configured, m.State())

	require.NoError(t, m.SetConstraintViolationPrices(model.ViolationPrices{Demand: 1000}))
	require.NoError(t, m.Dispatch(context.Background()))
	prices, _ := m.EnergyPrices()
	assert.InDelta(t, 1000, prices["NSW"], eps, "unserved energy sets the price")
}

func TestViolationPricesValidated(t *testing.T) {
	m := newMarket(t)
	require.ErrorIs(t, m.SetConstraintViolationPrices(model.ViolationPrices{FCAS: -1}), model.ErrValidation)
	assert.Equal(t, Empty, m.State())
}

func TestSolverErrorPropagates(t *testing.T) {
	s := &countingSolver{err: &solver.Error{Backend: "fake", Err: context.DeadlineExceeded}}
	m, err := New(s, logger.NopLogger{})
	require.NoError(t, err)
	require.NoError(t, m.SetUnitInfo([]model.Unit{{ID: "A", Region: "NSW"}}))
	energyBids(m, t, []model.VolumeBid{{Unit: "A", Bands: []float64{100}}}, []model.PriceBid{{Unit: "A", Bands: []float64{20}}})
	require.NoError(t, m.SetDemandConstraints([]model.RegionDemand{{Region: "NSW", Demand: 10}}))

	err = m.Dispatch(context.Background())
	require.ErrorIs(t, err, solver.ErrSolver)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, s.calls)
}

func TestLossesRejectedOnSet(t *testing.T) {
	m := newMarket(t)
	err := m.SetInterconnectorLosses([]model.InterconnectorLoss{{Interconnector: "X", FromRegionLossShare: 1.5,
		Function: model.LossFunc(func(float64) float64 { return 0 })}}, nil)
	require.ErrorIs(t, err, model.ErrValidation)
	err = m.SetInterconnectorLosses(nil, []model.BreakPoint{{Interconnector: "X", Segment: 1}})
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestNewRejectsNil(t *testing.T) {
	_, err := New(nil, logger.NopLogger{})
	require.Error(t, err)
}

func TestDispatchMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	ResetMetrics(reg)
	t.Cleanup(func() { ResetMetrics(nil) })

	m := newMarket(t)
	require.NoError(t, m.SetUnitInfo([]model.Unit{{ID: "A", Region: "NSW"}}))
	energyBids(m, t, []model.VolumeBid{{Unit: "A", Bands: []float64{100}}}, []model.PriceBid{{Unit: "A", Bands: []float64{20}}})
	require.NoError(t, m.SetDemandConstraints([]model.RegionDemand{{Region: "NSW", Demand: 10}}))
	require.NoError(t, m.Dispatch(context.Background()))

	assert.Equal(t, 1.0, testutil.ToFloat64(dispatches.WithLabelValues("optimal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(modelSize.WithLabelValues("variables")))
	assert.Equal(t, 1.0, testutil.ToFloat64(modelSize.WithLabelValues("constraints")))
	count, err := testutil.GatherAndCount(reg, "market_dispatch_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
