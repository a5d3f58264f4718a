package model

import (
	"fmt"
	"sort"
)

// RegionDemand is the energy that must be balanced in a region.
type RegionDemand struct {
	Region string  `json:"region" yaml:"region"`
	Demand float64 `json:"demand" yaml:"demand"`
}

// ValidateDemand rejects duplicate regions and non-finite demand.
func ValidateDemand(rows []RegionDemand) error {
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r.Region == "" {
			return NewValidationError("demand", "", "region is empty")
		}
		if _, dup := seen[r.Region]; dup {
			return NewValidationError("demand", r.Region, "duplicate region")
		}
		seen[r.Region] = struct{}{}
		if !finite(r.Demand) {
			return NewValidationError("demand", r.Region, "demand is not finite")
		}
	}
	return nil
}

// Interconnector is a transmission link. Positive flow runs from FromRegion
// to ToRegion.
type Interconnector struct {
	ID         string  `json:"interconnector" yaml:"interconnector"`
	FromRegion string  `json:"from_region" yaml:"from_region"`
	ToRegion   string  `json:"to_region" yaml:"to_region"`
	MinFlow    float64 `json:"min" yaml:"min"`
	MaxFlow    float64 `json:"max" yaml:"max"`
}

// ValidateInterconnectors checks ids, regions and flow limits.
func ValidateInterconnectors(rows []Interconnector) error {
	seen := make(map[string]struct{}, len(rows))
	for _, ic := range rows {
		if ic.ID == "" {
			return NewValidationError("interconnectors", "", "interconnector id is empty")
		}
		if _, dup := seen[ic.ID]; dup {
			return NewValidationError("interconnectors", ic.ID, "duplicate interconnector")
		}
		seen[ic.ID] = struct{}{}
		if ic.FromRegion == "" || ic.ToRegion == "" || ic.FromRegion == ic.ToRegion {
			return NewValidationError("interconnectors", ic.ID, "needs two distinct regions")
		}
		if !finite(ic.MinFlow) || !finite(ic.MaxFlow) || ic.MinFlow > ic.MaxFlow {
			return NewValidationError("interconnectors", ic.ID, fmt.Sprintf("invalid flow limits [%v, %v]", ic.MinFlow, ic.MaxFlow))
		}
	}
	return nil
}

// LossFunction returns the MW lost on an interconnector at a given flow.
type LossFunction interface {
	Losses(flow float64) float64
}

// LossFunc adapts a plain function to LossFunction.
type LossFunc func(flow float64) float64

// Losses calls f.
func (f LossFunc) Losses(flow float64) float64 { return f(flow) }

// InterconnectorLoss attaches a loss function to an interconnector. The
// FromRegionLossShare fraction of losses is taken from the sending region, the
// rest from the receiving region.
type InterconnectorLoss struct {
	Interconnector      string       `json:"interconnector"`
	FromRegionLossShare float64      `json:"from_region_loss_share"`
	Function            LossFunction `json:"-"`
}

// BreakPoint is one flow value of an interconnector's interpolation grid.
type BreakPoint struct {
	Interconnector string  `json:"interconnector" yaml:"interconnector"`
	Segment        int     `json:"loss_segment" yaml:"loss_segment"`
	BreakPoint     float64 `json:"break_point" yaml:"break_point"`
}

// GridFor returns the break points of one interconnector ordered by segment.
func GridFor(rows []BreakPoint, interconnector string) []float64 {
	var sel []BreakPoint
	for _, r := range rows {
		if r.Interconnector == interconnector {
			sel = append(sel, r)
		}
	}
	sort.SliceStable(sel, func(i, j int) bool { return sel[i].Segment < sel[j].Segment })
	out := make([]float64, len(sel))
	for i, r := range sel {
		out[i] = r.BreakPoint
	}
	return out
}

// LossCoefficients are the quadratic loss model parameters of an interconnector.
type LossCoefficients struct {
	Interconnector      string  `json:"interconnector" yaml:"interconnector"`
	LossConstant        float64 `json:"loss_constant" yaml:"loss_constant"`
	FlowCoefficient     float64 `json:"flow_coefficient" yaml:"flow_coefficient"`
	FromRegionLossShare float64 `json:"from_region_loss_share" yaml:"from_region_loss_share"`
}

// DemandCoefficient weights a region's demand in an interconnector's loss model.
type DemandCoefficient struct {
	Interconnector string  `json:"interconnector" yaml:"interconnector"`
	Region         string  `json:"region" yaml:"region"`
	Coefficient    float64 `json:"demand_coefficient" yaml:"demand_coefficient"`
}

// LossDemand is the regional demand used to evaluate loss models.
type LossDemand struct {
	Region string  `json:"region" yaml:"region"`
	Demand float64 `json:"loss_function_demand" yaml:"loss_function_demand"`
}
