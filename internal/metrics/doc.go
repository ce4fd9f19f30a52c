// Package metrics records per-run Prometheus counters for listing outcomes
// and screening aggregation, and can dump them to a textfile for
// node_exporter's textfile collector.
package metrics
