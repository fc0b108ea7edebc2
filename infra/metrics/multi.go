package metrics

import coremetrics "github.com/dispatchkit/dispatchboard/core/metrics"

// MultiSink fanouts cache events to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordQuery forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordQuery(ev coremetrics.QueryEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordQuery(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordMutation forwards the event to all sinks.
func (m *MultiSink) RecordMutation(ev coremetrics.MutationEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordMutation(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordInvalidation forwards the event to all sinks.
func (m *MultiSink) RecordInvalidation(ev coremetrics.InvalidationEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordInvalidation(ev); err != nil {
			return err
		}
	}
	return nil
}
