// Package config loads the service configuration from a YAML or JSON file
// with K_SECTION__KEY environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/spotmarket/core/batch"
	"github.com/kilianp07/spotmarket/core/journal"
	"github.com/kilianp07/spotmarket/core/market"
	"github.com/kilianp07/spotmarket/core/metrics"
	"github.com/kilianp07/spotmarket/core/solver"
	"github.com/kilianp07/spotmarket/infra/api"
	"github.com/kilianp07/spotmarket/infra/mqtt"
)

type Config struct {
	Solver  solver.Config  `json:"solver"`
	Market  market.Config  `json:"market"`
	Batch   batch.Config   `json:"batch"`
	Metrics metrics.Config `json:"metrics"`
	Journal journal.Config `json:"journal"`
	// MQTT publishing is enabled when a broker is set.
	MQTT mqtt.Config `json:"mqtt"`
	API  api.Config  `json:"api"`
}

// Default returns a configuration with every section defaulted.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

// Load reads path, applies environment overrides, defaults and validation.
// An empty path loads only the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	c.Solver.SetDefaults()
	c.Market.SetDefaults()
	c.Batch.SetDefaults()
	c.Journal.SetDefaults()
	c.API.SetDefaults()
	if c.MQTTEnabled() {
		c.MQTT.SetDefaults()
	}
}

// MQTTEnabled reports whether a broker is configured.
func (c Config) MQTTEnabled() bool {
	return c.MQTT.Broker != ""
}

// Validate checks every section.
func (c Config) Validate() error {
	checks := []struct {
		section string
		err     error
	}{
		{"solver", c.Solver.Validate()},
		{"market", c.Market.Validate()},
		{"batch", c.Batch.Validate()},
		{"journal", c.Journal.Validate()},
		{"api", c.API.Validate()},
	}
	if c.MQTTEnabled() {
		checks = append(checks, struct {
			section string
			err     error
		}{"mqtt", c.MQTT.Validate()})
	}
	for _, ch := range checks {
		if ch.err != nil {
			return fmt.Errorf("%s: %w", ch.section, ch.err)
		}
	}
	return nil
}
