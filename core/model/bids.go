package model

import (
	"fmt"
	"math"
)

// MaxBands is the number of price/volume bands a unit may offer per service.
const MaxBands = 10

// VolumeBid holds the MW offered in each band for one unit and service.
type VolumeBid struct {
	Unit    string    `json:"unit" yaml:"unit"`
	Service Service   `json:"service,omitempty" yaml:"service,omitempty"`
	Bands   []float64 `json:"bands" yaml:"bands"`
}

// PriceBid holds the $/MW price of each band for one unit and service.
type PriceBid struct {
	Unit    string    `json:"unit" yaml:"unit"`
	Service Service   `json:"service,omitempty" yaml:"service,omitempty"`
	Bands   []float64 `json:"bands" yaml:"bands"`
}

// UnitService keys a (unit, service) pair.
type UnitService struct {
	Unit    string  `json:"unit" yaml:"unit"`
	Service Service `json:"service" yaml:"service"`
}

func serviceOrEnergy(s Service) Service {
	if s == "" {
		return Energy
	}
	return s
}

// Key returns the (unit, service) pair of the bid; an empty service means energy.
func (b VolumeBid) Key() UnitService {
	return UnitService{Unit: b.Unit, Service: serviceOrEnergy(b.Service)}
}

// Key returns the (unit, service) pair of the bid; an empty service means energy.
func (b PriceBid) Key() UnitService {
	return UnitService{Unit: b.Unit, Service: serviceOrEnergy(b.Service)}
}

func checkBidShape(table string, key UnitService, bands []float64) error {
	entity := key.Unit + "/" + string(key.Service)
	if key.Unit == "" {
		return NewValidationError(table, "", "unit id is empty")
	}
	if !key.Service.Valid() {
		return NewValidationError(table, entity, fmt.Sprintf("unknown service %q", key.Service))
	}
	if len(bands) == 0 || len(bands) > MaxBands {
		return NewValidationError(table, entity, fmt.Sprintf("expected 1..%d bands, got %d", MaxBands, len(bands)))
	}
	return nil
}

// ValidateVolumeBids rejects negative or non-finite volumes and duplicate keys.
func ValidateVolumeBids(bids []VolumeBid) error {
	seen := make(map[UnitService]struct{}, len(bids))
	for _, b := range bids {
		k := b.Key()
		if err := checkBidShape("volume_bids", k, b.Bands); err != nil {
			return err
		}
		if _, dup := seen[k]; dup {
			return NewValidationError("volume_bids", k.Unit+"/"+string(k.Service), "duplicate bid")
		}
		seen[k] = struct{}{}
		for i, v := range b.Bands {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return NewValidationError("volume_bids", k.Unit+"/"+string(k.Service),
					fmt.Sprintf("band %d volume %v must be finite and non-negative", i+1, v))
			}
		}
	}
	return nil
}

// ValidatePriceBids rejects non-finite prices, duplicate keys and price bands
// that decrease with the band index.
func ValidatePriceBids(bids []PriceBid) error {
	seen := make(map[UnitService]struct{}, len(bids))
	for _, b := range bids {
		k := b.Key()
		if err := checkBidShape("price_bids", k, b.Bands); err != nil {
			return err
		}
		if _, dup := seen[k]; dup {
			return NewValidationError("price_bids", k.Unit+"/"+string(k.Service), "duplicate bid")
		}
		seen[k] = struct{}{}
		for i, p := range b.Bands {
			if math.IsNaN(p) || math.IsInf(p, 0) {
				return NewValidationError("price_bids", k.Unit+"/"+string(k.Service),
					fmt.Sprintf("band %d price is not finite", i+1))
			}
			if i > 0 && p < b.Bands[i-1] {
				return NewValidationError("price_bids", k.Unit+"/"+string(k.Service),
					fmt.Sprintf("band %d price %v below band %d price %v", i+1, p, i, b.Bands[i-1]))
			}
		}
	}
	return nil
}
