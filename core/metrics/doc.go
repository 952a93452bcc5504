// Package metrics defines the sinks that observe optimization runs and
// dispatch outcomes. Sinks like the Prometheus, InfluxDB and Kafka ones in
// infra/metrics are created from configuration through a factory registry
// and combined with NewMultiSink when several are configured.
package metrics
