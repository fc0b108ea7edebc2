package metrics

import (
	"strconv"

	coremetrics "github.com/dispatchkit/dispatchboard/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records cache layer events in Prometheus metrics.
type PromSink struct {
	queries       *prometheus.CounterVec
	queryLatency  *prometheus.HistogramVec
	mutations     *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	fanout        *prometheus.HistogramVec
}

// NewPromSink registers cache metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	queries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_queries_total",
		Help: "Total number of cache reads by endpoint and hit/miss outcome",
	}, []string{"endpoint", "hit", "error"})
	queryLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cache_query_latency_seconds",
		Help:    "Time to serve a cache read, including network fetches on miss",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "hit"})
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_mutations_total",
		Help: "Total number of mutation runs by terminal status",
	}, []string{"name", "status"})
	invalidations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_invalidations_total",
		Help: "Total number of tag invalidations",
	}, []string{"tag"})
	fanout := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cache_invalidation_fanout",
		Help:    "Number of cache slots reached by one tag invalidation",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
	}, []string{"tag"})

	if err := reg.Register(queries); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			queries = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(queryLatency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			queryLatency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(mutations); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			mutations = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(invalidations); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			invalidations = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(fanout); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			fanout = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		queries:       queries,
		queryLatency:  queryLatency,
		mutations:     mutations,
		invalidations: invalidations,
		fanout:        fanout,
	}, nil
}

// RecordQuery increments the query counter and observes its latency.
func (s *PromSink) RecordQuery(ev coremetrics.QueryEvent) error {
	hit := strconv.FormatBool(ev.Hit)
	s.queries.WithLabelValues(ev.Endpoint, hit, strconv.FormatBool(ev.Err)).Inc()
	s.queryLatency.WithLabelValues(ev.Endpoint, hit).Observe(ev.Latency.Seconds())
	return nil
}

// RecordMutation counts a mutation run under its terminal status.
func (s *PromSink) RecordMutation(ev coremetrics.MutationEvent) error {
	s.mutations.WithLabelValues(ev.Name, ev.Status).Inc()
	return nil
}

// RecordInvalidation counts the invalidation and observes its fanout.
func (s *PromSink) RecordInvalidation(ev coremetrics.InvalidationEvent) error {
	s.invalidations.WithLabelValues(ev.Tag).Inc()
	s.fanout.WithLabelValues(ev.Tag).Observe(float64(ev.Fanout))
	return nil
}
