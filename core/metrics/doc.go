package metrics

// Package metrics defines the sink contract for cleared dispatch intervals.
// Sinks like PromSink and InfluxSink live in infra/metrics and register
// themselves by name. NewMetricsSink returns a MultiSink automatically when
// several sinks are configured.
