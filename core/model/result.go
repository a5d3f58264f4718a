package model

import "time"

// Status is the outcome of a dispatch solve.
type Status string

const (
	StatusNotSolved  Status = "not_solved"
	StatusOptimal    Status = "optimal"
	StatusInfeasible Status = "infeasible"
	StatusUnbounded  Status = "unbounded"
	StatusError      Status = "solver_error"
	StatusInvalid    Status = "invalid"
)

// UnitDispatch is the dispatched quantity of a unit for one service.
type UnitDispatch struct {
	Unit     string  `json:"unit"`
	Service  Service `json:"service"`
	Dispatch float64 `json:"dispatch"`
}

// RegionService keys FCAS prices.
type RegionService struct {
	Region  string  `json:"region"`
	Service Service `json:"service"`
}

// RegionPrice is the clearing price of a service in a region.
type RegionPrice struct {
	Region  string  `json:"region"`
	Service Service `json:"service"`
	Price   float64 `json:"price"`
}

// InterconnectorFlow is the dispatched flow and the losses it incurs.
type InterconnectorFlow struct {
	Interconnector string  `json:"interconnector"`
	Flow           float64 `json:"flow"`
	Losses         float64 `json:"losses"`
}

// DispatchResult is the outcome of one interval.
type DispatchResult struct {
	Interval        string               `json:"interval"`
	Status          Status               `json:"status"`
	Error           string               `json:"error,omitempty"`
	Objective       float64              `json:"objective"`
	Dispatch        []UnitDispatch       `json:"dispatch,omitempty"`
	Prices          []RegionPrice        `json:"prices,omitempty"`
	Interconnectors []InterconnectorFlow `json:"interconnectors,omitempty"`
	SolveTime       time.Duration        `json:"solve_time"`
	SolvedAt        time.Time            `json:"solved_at"`
}

// EnergyDispatch returns the energy dispatch of unit, or false if it has none.
func (r DispatchResult) EnergyDispatch(unit string) (float64, bool) {
	for _, d := range r.Dispatch {
		if d.Unit == unit && d.Service == Energy {
			return d.Dispatch, true
		}
	}
	return 0, false
}

// Price returns the price of service in region, or false if none was cleared.
func (r DispatchResult) Price(region string, service Service) (float64, bool) {
	for _, p := range r.Prices {
		if p.Region == region && p.Service == service {
			return p.Price, true
		}
	}
	return 0, false
}
