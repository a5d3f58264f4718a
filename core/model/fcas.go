package model

import "fmt"

// FCASTrapezium describes the joint energy/FCAS feasible region of a unit for
// one FCAS service. Its corners are (EnablementMin, 0), (LowBreakPoint,
// MaxAvailability), (HighBreakPoint, MaxAvailability) and (EnablementMax, 0).
type FCASTrapezium struct {
	Unit            string  `json:"unit" yaml:"unit"`
	Service         Service `json:"service" yaml:"service"`
	MaxAvailability float64 `json:"max_availability" yaml:"max_availability"`
	EnablementMin   float64 `json:"enablement_min" yaml:"enablement_min"`
	LowBreakPoint   float64 `json:"low_break_point" yaml:"low_break_point"`
	HighBreakPoint  float64 `json:"high_break_point" yaml:"high_break_point"`
	EnablementMax   float64 `json:"enablement_max" yaml:"enablement_max"`
}

// Validate checks the trapezium corners are ordered and finite.
func (t FCASTrapezium) Validate() error {
	entity := t.Unit + "/" + string(t.Service)
	if t.Unit == "" {
		return NewValidationError("fcas_trapezium", "", "unit id is empty")
	}
	if !t.Service.IsFCAS() {
		return NewValidationError("fcas_trapezium", entity, fmt.Sprintf("service %q is not an FCAS service", t.Service))
	}
	for _, v := range []float64{t.MaxAvailability, t.EnablementMin, t.LowBreakPoint, t.HighBreakPoint, t.EnablementMax} {
		if !finite(v) {
			return NewValidationError("fcas_trapezium", entity, "parameters must be finite")
		}
	}
	if t.MaxAvailability < 0 {
		return NewValidationError("fcas_trapezium", entity, "max availability is negative")
	}
	if !(t.EnablementMin <= t.LowBreakPoint && t.LowBreakPoint <= t.HighBreakPoint && t.HighBreakPoint <= t.EnablementMax) {
		return NewValidationError("fcas_trapezium", entity, fmt.Sprintf(
			"expected enablement_min <= low <= high <= enablement_max, got %v, %v, %v, %v",
			t.EnablementMin, t.LowBreakPoint, t.HighBreakPoint, t.EnablementMax))
	}
	return nil
}

// ValidateTrapeziums validates each trapezium and rejects duplicate keys.
// When want is not nil it restricts the accepted services.
func ValidateTrapeziums(table string, rows []FCASTrapezium, want func(Service) bool) error {
	seen := make(map[UnitService]struct{}, len(rows))
	for _, t := range rows {
		if err := t.Validate(); err != nil {
			err.(*ValidationError).Table = table
			return err
		}
		if want != nil && !want(t.Service) {
			return NewValidationError(table, t.Unit+"/"+string(t.Service), "service not allowed in this table")
		}
		k := UnitService{Unit: t.Unit, Service: t.Service}
		if _, dup := seen[k]; dup {
			return NewValidationError(table, t.Unit+"/"+string(t.Service), "duplicate trapezium")
		}
		seen[k] = struct{}{}
	}
	return nil
}

// FCASAvailability caps the FCAS a unit may provide for a service.
type FCASAvailability struct {
	Unit            string  `json:"unit" yaml:"unit"`
	Service         Service `json:"service" yaml:"service"`
	MaxAvailability float64 `json:"max_availability" yaml:"max_availability"`
}

// ValidateAvailabilities rejects negative availabilities, energy rows and duplicates.
func ValidateAvailabilities(rows []FCASAvailability) error {
	seen := make(map[UnitService]struct{}, len(rows))
	for _, r := range rows {
		entity := r.Unit + "/" + string(r.Service)
		if r.Unit == "" {
			return NewValidationError("fcas_max_availability", "", "unit id is empty")
		}
		if !r.Service.IsFCAS() {
			return NewValidationError("fcas_max_availability", entity, "service is not an FCAS service")
		}
		if !finite(r.MaxAvailability) || r.MaxAvailability < 0 {
			return NewValidationError("fcas_max_availability", entity, "max availability must be finite and non-negative")
		}
		k := UnitService{Unit: r.Unit, Service: r.Service}
		if _, dup := seen[k]; dup {
			return NewValidationError("fcas_max_availability", entity, "duplicate row")
		}
		seen[k] = struct{}{}
	}
	return nil
}
