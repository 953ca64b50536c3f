// Package otel publishes Gateway metrics as OpenTelemetry instruments.
//
// [NewExporter] registers an Int64ObservableCounter per Gateway counter and an
// Int64ObservableGauge per latency bucket. One callback reads
// [walletauth.Gateway.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate Gateway state.
package otel
