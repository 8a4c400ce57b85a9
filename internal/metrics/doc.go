// Package metrics exports the outcome of an installer run as a Prometheus
// textfile, ready for the node exporter textfile collector.
package metrics
