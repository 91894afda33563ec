// Package metrics records connection health as Prometheus metrics.
//
// Components accept a Recorder; Noop is used when metrics are disabled.
// Prometheus registers its collectors on a caller-supplied registerer so
// several clients (or tests) never collide on the default registry.
package metrics
