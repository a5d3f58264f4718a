package model

import (
	"fmt"
	"math"
)

// UnitCapacity caps a unit's energy dispatch.
type UnitCapacity struct {
	Unit     string  `json:"unit" yaml:"unit"`
	Capacity float64 `json:"capacity" yaml:"capacity"`
}

// RampLimit bounds the change of energy dispatch from InitialOutput at Rate MW/h.
type RampLimit struct {
	Unit          string  `json:"unit" yaml:"unit"`
	InitialOutput float64 `json:"initial_output" yaml:"initial_output"`
	Rate          float64 `json:"rate" yaml:"rate"`
}

// OperatingLimits gathers the per-unit operating state carried in from the
// previous interval.
type OperatingLimits struct {
	Unit          string  `json:"unit" yaml:"unit"`
	InitialOutput float64 `json:"initial_output" yaml:"initial_output"`
	RampUpRate    float64 `json:"ramp_up_rate" yaml:"ramp_up_rate"`
	RampDownRate  float64 `json:"ramp_down_rate" yaml:"ramp_down_rate"`
	Capacity      float64 `json:"capacity" yaml:"capacity"`
}

// CapacityLimit extracts the capacity row.
func (l OperatingLimits) CapacityLimit() UnitCapacity {
	return UnitCapacity{Unit: l.Unit, Capacity: l.Capacity}
}

// RampUp extracts the ramp up row.
func (l OperatingLimits) RampUp() RampLimit {
	return RampLimit{Unit: l.Unit, InitialOutput: l.InitialOutput, Rate: l.RampUpRate}
}

// RampDown extracts the ramp down row.
func (l OperatingLimits) RampDown() RampLimit {
	return RampLimit{Unit: l.Unit, InitialOutput: l.InitialOutput, Rate: l.RampDownRate}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// ValidateCapacities rejects negative or non-finite capacities and duplicates.
func ValidateCapacities(rows []UnitCapacity) error {
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r.Unit == "" {
			return NewValidationError("unit_capacity", "", "unit id is empty")
		}
		if _, dup := seen[r.Unit]; dup {
			return NewValidationError("unit_capacity", r.Unit, "duplicate unit")
		}
		seen[r.Unit] = struct{}{}
		if !finite(r.Capacity) || r.Capacity < 0 {
			return NewValidationError("unit_capacity", r.Unit, fmt.Sprintf("capacity %v must be finite and non-negative", r.Capacity))
		}
	}
	return nil
}

// ValidateRampLimits rejects negative or non-finite rates and outputs.
func ValidateRampLimits(table string, rows []RampLimit) error {
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r.Unit == "" {
			return NewValidationError(table, "", "unit id is empty")
		}
		if _, dup := seen[r.Unit]; dup {
			return NewValidationError(table, r.Unit, "duplicate unit")
		}
		seen[r.Unit] = struct{}{}
		if !finite(r.Rate) || r.Rate < 0 {
			return NewValidationError(table, r.Unit, fmt.Sprintf("ramp rate %v must be finite and non-negative", r.Rate))
		}
		if !finite(r.InitialOutput) || r.InitialOutput < 0 {
			return NewValidationError(table, r.Unit, fmt.Sprintf("initial output %v must be finite and non-negative", r.InitialOutput))
		}
	}
	return nil
}

// ValidateOperatingLimits checks every derived row of the limits table.
func ValidateOperatingLimits(rows []OperatingLimits) error {
	up := make([]RampLimit, len(rows))
	down := make([]RampLimit, len(rows))
	caps := make([]UnitCapacity, len(rows))
	for i, r := range rows {
		up[i], down[i], caps[i] = r.RampUp(), r.RampDown(), r.CapacityLimit()
	}
	if err := ValidateRampLimits("operating_limits", up); err != nil {
		return err
	}
	if err := ValidateRampLimits("operating_limits", down); err != nil {
		return err
	}
	return ValidateCapacities(caps)
}
