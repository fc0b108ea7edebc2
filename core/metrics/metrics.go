// Package metrics defines the observability contract of the cache layer.
// Concrete sinks (Prometheus, InfluxDB) live in infra/metrics.
package metrics

import "time"

// QueryEvent describes one cache read: a hit served locally or a miss that
// went to the network.
type QueryEvent struct {
	Endpoint string
	Hit      bool
	Latency  time.Duration
	Err      bool
}

// MutationEvent describes one mutation run and its terminal state.
type MutationEvent struct {
	Name    string
	Status  string
	Latency time.Duration
}

// InvalidationEvent describes one tag invalidation and how many cache slots
// it reached.
type InvalidationEvent struct {
	Tag    string
	Fanout int
}

// Sink records cache layer events.
type Sink interface {
	RecordQuery(ev QueryEvent) error
	RecordMutation(ev MutationEvent) error
	RecordInvalidation(ev InvalidationEvent) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordQuery(QueryEvent) error               { return nil }
func (NopSink) RecordMutation(MutationEvent) error         { return nil }
func (NopSink) RecordInvalidation(InvalidationEvent) error { return nil }

// Config selects which sinks the service wires up.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}
