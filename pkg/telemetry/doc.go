// Package telemetry provides structured logging (zerolog), Prometheus
// metrics, and OpenTelemetry tracing for the Setforge engine. All three are
// constructor-injected; a disabled component degrades to a no-op.
package telemetry
