package market

import (
	"fmt"

	"github.com/kilianp07/spotmarket/core/constraints"
	"github.com/kilianp07/spotmarket/core/model"
)

// Config holds market wide settings shared by every interval.
type Config struct {
	IntervalMinutes      float64 `json:"interval_minutes"`
	DemandViolationPrice float64 `json:"demand_violation_price"`
	FCASViolationPrice   float64 `json:"fcas_violation_price"`
}

// SetDefaults applies the five minute dispatch interval.
func (c *Config) SetDefaults() {
	if c.IntervalMinutes == 0 {
		c.IntervalMinutes = constraints.DefaultIntervalMinutes
	}
}

// Validate checks the interval length and the violation prices.
func (c Config) Validate() error {
	if c.IntervalMinutes <= 0 {
		return fmt.Errorf("interval_minutes must be positive, got %v", c.IntervalMinutes)
	}
	if c.DemandViolationPrice < 0 || c.FCASViolationPrice < 0 {
		return fmt.Errorf("violation prices must be non-negative")
	}
	return nil
}

// Options turns the config into market options.
func (c Config) Options() []Option {
	return []Option{
		WithIntervalMinutes(c.IntervalMinutes),
		WithViolationPrices(model.ViolationPrices{Demand: c.DemandViolationPrice, FCAS: c.FCASViolationPrice}),
	}
}
