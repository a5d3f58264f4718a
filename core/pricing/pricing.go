// Package pricing reads market prices from the duals of the demand and FCAS
// requirement rows.
package pricing

import (
	"fmt"
	"sort"

	"github.com/kilianp07/spotmarket/core/linear"
	"github.com/kilianp07/spotmarket/core/model"
	"github.com/kilianp07/spotmarket/core/solver"
)

// Extractor maps a solution's duals onto regions and services.
type Extractor struct {
	m     *linear.Model
	duals []float64
}

// New pairs a model with the duals of its solution.
func New(m *linear.Model, sol solver.Solution) (*Extractor, error) {
	if len(sol.Duals) != len(m.Constraints) {
		return nil, fmt.Errorf("pricing: %d duals for %d constraints", len(sol.Duals), len(m.Constraints))
	}
	return &Extractor{m: m, duals: sol.Duals}, nil
}

// EnergyPrices returns the dual of each region's demand balance. Regions
// whose balance row was dropped for lack of variables are omitted.
func (e *Extractor) EnergyPrices() map[string]float64 {
	out := make(map[string]float64)
	for _, c := range e.m.Constraints {
		if c.Family == linear.FamilyDemand && c.Priced {
			out[c.Key.Region] = e.duals[c.ID]
		}
	}
	return out
}

// FCASPrices sums, per region and service, the duals of every requirement set
// covering the region.
func (e *Extractor) FCASPrices() map[model.RegionService]float64 {
	out := make(map[model.RegionService]float64)
	for _, c := range e.m.Constraints {
		if c.Family != linear.FamilyFCASRequirement || !c.Priced {
			continue
		}
		for _, r := range c.Regions {
			out[model.RegionService{Region: r, Service: c.Key.Service}] += e.duals[c.ID]
		}
	}
	return out
}

// Prices flattens energy and FCAS prices, ordered by region then service.
func (e *Extractor) Prices() []model.RegionPrice {
	var out []model.RegionPrice
	for region, p := range e.EnergyPrices() {
		out = append(out, model.RegionPrice{Region: region, Service: model.Energy, Price: p})
	}
	for k, p := range e.FCASPrices() {
		out = append(out, model.RegionPrice{Region: k.Region, Service: k.Service, Price: p})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Region != out[j].Region {
			return out[i].Region < out[j].Region
		}
		return out[i].Service < out[j].Service
	})
	return out
}
