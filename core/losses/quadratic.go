package losses

import (
	"fmt"

	"github.com/kilianp07/spotmarket/core/model"
)

// Quadratic is losses = Linear*flow + Square*flow^2.
type Quadratic struct {
	Linear float64
	Square float64
}

// Losses evaluates the quadratic at flow.
func (q Quadratic) Losses(flow float64) float64 {
	return q.Linear*flow + q.Square*flow*flow
}

// NewQuadratic builds the loss equation of one interconnector. The loss factor
// at a given flow is (loss_constant - 1) + sum(demand_coef*demand) +
// flow_coefficient*flow; integrating it over flow gives the losses.
func NewQuadratic(c model.LossCoefficients, demandCoefs []model.DemandCoefficient, demand map[string]float64) (Quadratic, error) {
	linear := c.LossConstant - 1
	for _, dc := range demandCoefs {
		if dc.Interconnector != c.Interconnector {
			continue
		}
		d, ok := demand[dc.Region]
		if !ok {
			return Quadratic{}, model.NewValidationError("loss_demand", dc.Region,
				fmt.Sprintf("no loss function demand for region used by %s", c.Interconnector))
		}
		linear += dc.Coefficient * d
	}
	return Quadratic{Linear: linear, Square: c.FlowCoefficient / 2}, nil
}

// CreateLossFunctions builds one InterconnectorLoss per coefficient row.
func CreateLossFunctions(coefs []model.LossCoefficients, demandCoefs []model.DemandCoefficient, demand []model.LossDemand) ([]model.InterconnectorLoss, error) {
	byRegion := make(map[string]float64, len(demand))
	for _, d := range demand {
		byRegion[d.Region] = d.Demand
	}
	out := make([]model.InterconnectorLoss, 0, len(coefs))
	for _, c := range coefs {
		if c.FromRegionLossShare < 0 || c.FromRegionLossShare > 1 {
			return nil, model.NewValidationError("loss_coefficients", c.Interconnector, "from_region_loss_share must be within [0, 1]")
		}
		q, err := NewQuadratic(c, demandCoefs, byRegion)
		if err != nil {
			return nil, err
		}
		out = append(out, model.InterconnectorLoss{
			Interconnector:      c.Interconnector,
			FromRegionLossShare: c.FromRegionLossShare,
			Function:            q,
		})
	}
	return out, nil
}
