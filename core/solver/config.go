package solver

import (
	"fmt"
	"time"

	"github.com/kilianp07/spotmarket/core/factory"
)

// Config selects and tunes the solver backend.
type Config struct {
	Backend        string  `json:"backend"`
	Tolerance      float64 `json:"tolerance"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// SetDefaults applies the gonum backend with a tight tolerance.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "gonum"
	}
	if c.Tolerance == 0 {
		c.Tolerance = 1e-7
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
}

// Validate checks the tolerance and timeout.
func (c Config) Validate() error {
	if c.Tolerance <= 0 || c.Tolerance >= 1e-2 {
		return fmt.Errorf("solver tolerance %v out of range", c.Tolerance)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("solver timeout must not be negative")
	}
	return nil
}

// Timeout returns the per-solve timeout, zero meaning none.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

var registry = factory.NewRegistry[Solver]()

// Register adds a solver backend factory identified by name.
func Register(name string, f factory.Factory[Solver]) error {
	return registry.Register(name, f)
}

// New creates the backend selected by cfg.Backend.
func New(cfg Config) (Solver, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return registry.Create(factory.ModuleConfig{Type: cfg.Backend, Conf: map[string]any{
		"tolerance": cfg.Tolerance,
	}})
}
