package constraints

import (
	"fmt"

	"github.com/kilianp07/spotmarket/core/linear"
	"github.com/kilianp07/spotmarket/core/model"
)

// RegisterBids allocates one variable per bid band and sets its cost from the
// matching price band. Load energy bands are priced at minus the bid so that
// consuming is worth its price; FCAS bands always cost their price.
func RegisterBids(reg *linear.Registry, units []model.Unit, volumes []model.VolumeBid, prices []model.PriceBid) error {
	byID := make(map[string]model.Unit, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}
	priceOf := make(map[model.UnitService][]float64, len(prices))
	for _, p := range prices {
		if _, ok := byID[p.Unit]; !ok {
			return model.NewValidationError("price_bids", p.Unit, "unknown unit")
		}
		priceOf[p.Key()] = p.Bands
	}
	seen := make(map[model.UnitService]struct{}, len(volumes))
	for _, v := range volumes {
		k := v.Key()
		u, ok := byID[k.Unit]
		if !ok {
			return model.NewValidationError("volume_bids", k.Unit, "unknown unit")
		}
		bands, ok := priceOf[k]
		if !ok {
			return model.NewValidationError("price_bids", k.Unit+"/"+string(k.Service), "volume bid has no price bid")
		}
		if len(bands) != len(v.Bands) {
			return model.NewValidationError("price_bids", k.Unit+"/"+string(k.Service),
				fmt.Sprintf("%d price bands for %d volume bands", len(bands), len(v.Bands)))
		}
		seen[k] = struct{}{}
		sign := 1.0
		if k.Service == model.Energy {
			sign = u.EnergySign()
		}
		for i, vol := range v.Bands {
			id, err := reg.Register(k.Unit, k.Service, i+1, vol)
			if err != nil {
				return err
			}
			reg.SetCost(id, sign*bands[i])
		}
	}
	for k := range priceOf {
		if _, ok := seen[k]; !ok {
			return model.NewValidationError("volume_bids", k.Unit+"/"+string(k.Service), "price bid has no volume bid")
		}
	}
	return nil
}
