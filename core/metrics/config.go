package metrics

import "github.com/kilianp07/spotmarket/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	// PrometheusAddress serves /metrics outside the API server, e.g. during
	// batch runs. Empty disables it.
	PrometheusAddress string `json:"prometheus_address" yaml:"prometheus_address"`
}
