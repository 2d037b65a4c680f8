// Package telemetry defines the service's Prometheus metrics.
//
// Metrics cover sandbox executions (count and duration by mode), harvested
// output files by category, and background sweep deletions. They register on
// the default registry; cmd/server optionally exposes them over HTTP.
package telemetry
