package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func write(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := write(t, "config.yaml", `solver:
  backend: gonum
  tolerance: 1e-8
  timeout_seconds: 5
market:
  interval_minutes: 30
  demand_violation_price: 14500
batch:
  workers: 3
  carry_initial_output: true
metrics:
  prometheus_address: ":9100"
  sinks:
    - type: "nop"
    - type: "influx"
      conf:
        url: "http://localhost:8086"
        bucket: "nem"
journal:
  backend: sqlite
  path: /tmp/journal.db
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  qos: 1
api:
  address: ":9090"
  cors_origins: ["https://ui.example"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"solver.backend", cfg.Solver.Backend, "gonum"},
		{"solver.tolerance", cfg.Solver.Tolerance, 1e-8},
		{"solver.timeout_seconds", cfg.Solver.TimeoutSeconds, 5},
		{"market.interval_minutes", cfg.Market.IntervalMinutes, 30.0},
		{"market.demand_violation_price", cfg.Market.DemandViolationPrice, 14500.0},
		{"batch.workers", cfg.Batch.Workers, 3},
		{"batch.carry_initial_output", cfg.Batch.CarryInitialOutput, true},
		{"metrics.sinks", len(cfg.Metrics.Sinks), 2},
		{"metrics.sinks[1].type", cfg.Metrics.Sinks[1].Type, "influx"},
		{"metrics.sinks[1].conf.bucket", cfg.Metrics.Sinks[1].Conf["bucket"], "nem"},
		{"metrics.prometheus_address", cfg.Metrics.PrometheusAddress, ":9100"},
		{"journal.backend", cfg.Journal.Backend, "sqlite"},
		{"journal.path", cfg.Journal.Path, "/tmp/journal.db"},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt.client_id", cfg.MQTT.ClientID, "cli"},
		{"mqtt.qos", cfg.MQTT.QoS, byte(1)},
		{"mqtt.topic_prefix", cfg.MQTT.TopicPrefix, "spotmarket"},
		{"api.address", cfg.API.Address, ":9090"},
		{"api.cors_origins", len(cfg.API.CORSOrigins), 1},
		{"mqtt enabled", cfg.MQTTEnabled(), true},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: got %v want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_JSONDefaults(t *testing.T) {
	path := write(t, "config.json", `{"batch": {"workers": 2}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Solver.Backend != "gonum" || cfg.Solver.Tolerance != 1e-7 || cfg.Solver.TimeoutSeconds != 30 {
		t.Errorf("solver defaults not applied: %+v", cfg.Solver)
	}
	if cfg.Market.IntervalMinutes != 5 {
		t.Errorf("interval default = %v", cfg.Market.IntervalMinutes)
	}
	if cfg.Journal.Backend != "none" {
		t.Errorf("journal default = %q", cfg.Journal.Backend)
	}
	if cfg.API.Address != ":8080" {
		t.Errorf("api default = %q", cfg.API.Address)
	}
	if cfg.MQTTEnabled() || cfg.MQTT.TopicPrefix != "" {
		t.Errorf("mqtt should stay disabled: %+v", cfg.MQTT)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := write(t, "config.yaml", "solver:\n  timeout_seconds: 5\n")
	t.Setenv("K_SOLVER__TIMEOUT_SECONDS", "12")
	t.Setenv("K_BATCH__WORKERS", "7")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Solver.TimeoutSeconds != 12 {
		t.Errorf("timeout override = %d", cfg.Solver.TimeoutSeconds)
	}
	if cfg.Batch.Workers != 7 {
		t.Errorf("workers override = %d", cfg.Batch.Workers)
	}
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]string{
		"tolerance": "solver:\n  tolerance: 0.5\n",
		"workers":   "batch:\n  workers: -2\n",
		"journal":   "journal:\n  backend: mongo\n",
		"interval":  "market:\n  interval_minutes: -5\n",
		"mqtt qos":  "mqtt:\n  broker: tcp://b:1883\n  qos: 4\n",
	}
	for name, data := range cases {
		if _, err := Load(write(t, "config.yaml", data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := Load(write(t, "config.toml", "")); err == nil {
		t.Errorf("expected unsupported format error")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Batch.Workers != runtime.NumCPU() {
		t.Errorf("workers = %d", cfg.Batch.Workers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}
