// Package infra contains technical adapters such as the LP solver backend,
// metrics sinks, the MQTT publisher and the HTTP API. These packages should
// depend only on the interfaces defined in the core packages.
package infra
