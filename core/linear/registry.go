package linear

import (
	"fmt"
	"math"

	"github.com/kilianp07/spotmarket/core/model"
)

// Kind classifies decision variables.
type Kind int

const (
	KindBid Kind = iota
	KindFlow
	KindLoss
	KindWeight
	KindDeficit
)

func (k Kind) String() string {
	switch k {
	case KindBid:
		return "bid"
	case KindFlow:
		return "flow"
	case KindLoss:
		return "loss"
	case KindWeight:
		return "weight"
	case KindDeficit:
		return "deficit"
	default:
		return "unknown"
	}
}

// Variable is one column of the LP.
type Variable struct {
	ID      int
	Kind    Kind
	Unit    string
	Service model.Service
	Band    int
	// Entity names the region-level owner: interconnector id, region or
	// requirement set.
	Entity string
	Lower  float64
	Upper  float64
	Cost   float64
}

// Name returns a stable identifier usable in exported model files.
func (v Variable) Name() string {
	switch v.Kind {
	case KindBid:
		return fmt.Sprintf("bid_%s_%s_%d", v.Unit, v.Service, v.Band)
	default:
		return fmt.Sprintf("%s_%s_%d", v.Kind, v.Entity, v.ID)
	}
}

type bidKey struct {
	unit    string
	service model.Service
	band    int
}

// Registry allocates decision variables and indexes them back to units and
// services.
type Registry struct {
	vars      []Variable
	bids      map[bidKey]int
	byService map[model.UnitService][]int
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		bids:      make(map[bidKey]int),
		byService: make(map[model.UnitService][]int),
	}
}

// Register allocates the variable of one bid band, bounded by [0, volume].
func (r *Registry) Register(unit string, service model.Service, band int, volume float64) (int, error) {
	entity := fmt.Sprintf("%s/%s/%d", unit, service, band)
	if math.IsNaN(volume) || math.IsInf(volume, 0) || volume < 0 {
		return -1, model.NewValidationError("volume_bids", entity, fmt.Sprintf("volume %v must be finite and non-negative", volume))
	}
	k := bidKey{unit: unit, service: service, band: band}
	if _, ok := r.bids[k]; ok {
		return -1, model.NewValidationError("volume_bids", entity, "band registered twice")
	}
	id := r.Add(Variable{Kind: KindBid, Unit: unit, Service: service, Band: band, Lower: 0, Upper: volume})
	r.bids[k] = id
	us := model.UnitService{Unit: unit, Service: service}
	r.byService[us] = append(r.byService[us], id)
	return id, nil
}

// Add appends a variable and returns its id. The ID field of v is ignored.
func (r *Registry) Add(v Variable) int {
	v.ID = len(r.vars)
	r.vars = append(r.vars, v)
	return v.ID
}

// SetCost sets the objective coefficient of a variable.
func (r *Registry) SetCost(id int, cost float64) {
	r.vars[id].Cost = cost
}

// Bid returns the variable id of a bid band.
func (r *Registry) Bid(unit string, service model.Service, band int) (int, bool) {
	id, ok := r.bids[bidKey{unit: unit, service: service, band: band}]
	return id, ok
}

// UnitServiceVars returns the band variables of a unit and service in band order.
func (r *Registry) UnitServiceVars(unit string, service model.Service) []int {
	return r.byService[model.UnitService{Unit: unit, Service: service}]
}

// HasService reports whether the unit has any band registered for service.
func (r *Registry) HasService(unit string, service model.Service) bool {
	return len(r.byService[model.UnitService{Unit: unit, Service: service}]) > 0
}

// Lookup returns the variable with the given id.
func (r *Registry) Lookup(id int) (Variable, bool) {
	if id < 0 || id >= len(r.vars) {
		return Variable{}, false
	}
	return r.vars[id], true
}

// Len returns the number of variables.
func (r *Registry) Len() int { return len(r.vars) }

// Variables returns a copy of all variables ordered by id.
func (r *Registry) Variables() []Variable {
	out := make([]Variable, len(r.vars))
	copy(out, r.vars)
	return out
}

// UnitServices lists every (unit, service) with at least one band.
func (r *Registry) UnitServices() []model.UnitService {
	out := make([]model.UnitService, 0, len(r.byService))
	seen := make(map[model.UnitService]struct{}, len(r.byService))
	for _, v := range r.vars {
		if v.Kind != KindBid {
			continue
		}
		us := model.UnitService{Unit: v.Unit, Service: v.Service}
		if _, ok := seen[us]; ok {
			continue
		}
		seen[us] = struct{}{}
		out = append(out, us)
	}
	return out
}

// Sum builds terms adding every band of a unit's service with coefficient coef.
func (r *Registry) Sum(unit string, service model.Service, coef float64) []Term {
	ids := r.UnitServiceVars(unit, service)
	terms := make([]Term, len(ids))
	for i, id := range ids {
		terms[i] = Term{Var: id, Coef: coef}
	}
	return terms
}
