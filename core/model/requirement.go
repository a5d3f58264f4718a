package model

import (
	"fmt"
	"math"
)

// Sense is the relational operator of a constraint row.
type Sense string

const (
	LessEq    Sense = "<="
	GreaterEq Sense = ">="
	Equal     Sense = "="
)

// Valid reports whether s is one of the three supported operators.
func (s Sense) Valid() bool { return s == LessEq || s == GreaterEq || s == Equal }

// FCASRequirement is one region's membership of a requirement set. All rows
// of a set share service, volume and type.
type FCASRequirement struct {
	Set     string  `json:"set" yaml:"set"`
	Service Service `json:"service" yaml:"service"`
	Region  string  `json:"region" yaml:"region"`
	Volume  float64 `json:"volume" yaml:"volume"`
	Type    Sense   `json:"type,omitempty" yaml:"type,omitempty"`
}

// Sense defaults the requirement type to ">=".
func (r FCASRequirement) Sense() Sense {
	if r.Type == "" {
		return GreaterEq
	}
	return r.Type
}

// RequirementSet is an FCAS requirement spanning one or more regions.
type RequirementSet struct {
	Set     string
	Service Service
	Regions []string
	Volume  float64
	Type    Sense
}

// GroupRequirements folds rows into sets, preserving first-seen order and
// rejecting rows that disagree with the rest of their set.
func GroupRequirements(rows []FCASRequirement) ([]RequirementSet, error) {
	idx := make(map[string]int)
	var sets []RequirementSet
	for _, r := range rows {
		if r.Set == "" {
			return nil, NewValidationError("fcas_requirements", "", "set id is empty")
		}
		if !r.Service.IsFCAS() {
			return nil, NewValidationError("fcas_requirements", r.Set, fmt.Sprintf("service %q is not an FCAS service", r.Service))
		}
		if !r.Sense().Valid() {
			return nil, NewValidationError("fcas_requirements", r.Set, fmt.Sprintf("unknown type %q", r.Type))
		}
		if r.Region == "" {
			return nil, NewValidationError("fcas_requirements", r.Set, "region is empty")
		}
		if math.IsNaN(r.Volume) || math.IsInf(r.Volume, 0) || r.Volume < 0 {
			return nil, NewValidationError("fcas_requirements", r.Set, "volume must be finite and non-negative")
		}
		i, ok := idx[r.Set]
		if !ok {
			idx[r.Set] = len(sets)
			sets = append(sets, RequirementSet{Set: r.Set, Service: r.Service, Regions: []string{r.Region}, Volume: r.Volume, Type: r.Sense()})
			continue
		}
		s := &sets[i]
		if s.Service != r.Service || s.Volume != r.Volume || s.Type != r.Sense() {
			return nil, NewValidationError("fcas_requirements", r.Set, "rows disagree on service, volume or type")
		}
		for _, reg := range s.Regions {
			if reg == r.Region {
				return nil, NewValidationError("fcas_requirements", r.Set, "region "+r.Region+" listed twice")
			}
		}
		s.Regions = append(s.Regions, r.Region)
	}
	return sets, nil
}

// ViolationPrices lets demand and FCAS requirement rows be violated at a cost
// instead of making the model infeasible. Zero disables the relaxation.
type ViolationPrices struct {
	Demand float64 `json:"demand" yaml:"demand"`
	FCAS   float64 `json:"fcas" yaml:"fcas"`
}
