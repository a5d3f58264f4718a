package model

import "fmt"

// DispatchType tells whether a unit injects (generator) or withdraws (load) energy.
type DispatchType string

const (
	Generator DispatchType = "generator"
	Load      DispatchType = "load"
)

// Unit is a scheduled market participant.
type Unit struct {
	ID           string       `json:"unit" yaml:"unit"`
	Region       string       `json:"region" yaml:"region"`
	DispatchType DispatchType `json:"dispatch_type,omitempty" yaml:"dispatch_type,omitempty"`
}

// Type returns the dispatch type, defaulting to Generator.
func (u Unit) Type() DispatchType {
	if u.DispatchType == "" {
		return Generator
	}
	return u.DispatchType
}

// EnergySign is +1 for generators and -1 for loads.
func (u Unit) EnergySign() float64 {
	if u.Type() == Load {
		return -1
	}
	return 1
}

// ValidateUnits checks identifiers, regions and dispatch types.
func ValidateUnits(units []Unit) error {
	seen := make(map[string]struct{}, len(units))
	for _, u := range units {
		if u.ID == "" {
			return NewValidationError("unit_info", "", "unit id is empty")
		}
		if _, dup := seen[u.ID]; dup {
			return NewValidationError("unit_info", u.ID, "duplicate unit")
		}
		seen[u.ID] = struct{}{}
		if u.Region == "" {
			return NewValidationError("unit_info", u.ID, "region is empty")
		}
		if t := u.Type(); t != Generator && t != Load {
			return NewValidationError("unit_info", u.ID, fmt.Sprintf("unknown dispatch type %q", t))
		}
	}
	return nil
}
