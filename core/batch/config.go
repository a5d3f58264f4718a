package batch

import (
	"fmt"
	"runtime"
)

// Config controls how a batch of intervals is solved.
type Config struct {
	// Workers bounds the number of intervals solved at once.
	Workers int `json:"workers"`
	// CarryInitialOutput solves intervals in order and starts each ramp
	// from the previous interval's energy dispatch.
	CarryInitialOutput bool `json:"carry_initial_output"`
}

// SetDefaults uses one worker per CPU.
func (c *Config) SetDefaults() {
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
}

// Validate checks the worker count.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}
