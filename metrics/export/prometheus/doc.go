// Package prometheus exposes Gateway metrics through client_golang.
//
// [NewCollector] wraps a [walletauth.Gateway] in a prometheus.Collector that
// turns each scrape into one MetricsSnapshot. Counter names are
// walletauth_*_total; the single histogram is
// walletauth_session_lookup_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into the global default registry. Callers choose the registry.
//   - Mutate Gateway state.
package prometheus
