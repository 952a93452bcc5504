package metrics

import "io"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards the run to all sinks. Every sink is called; the first
// error encountered is returned.
func (m *MultiSink) RecordRun(run RunSummary) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordRun(run); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RecordOptimize forwards planner events when supported by the sink.
func (m *MultiSink) RecordOptimize(ev OptimizeEvent) error {
	var first error
	for _, s := range m.Sinks {
		if rec, ok := s.(OptimizeRecorder); ok {
			if err := rec.RecordOptimize(ev); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// RecordStationCount forwards the connected station count when supported by
// the sink.
func (m *MultiSink) RecordStationCount(n int) error {
	var first error
	for _, s := range m.Sinks {
		if rec, ok := s.(StationRecorder); ok {
			if err := rec.RecordStationCount(n); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() error {
	var first error
	for _, s := range m.Sinks {
		if err := CloseSink(s); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// CloseSink closes s when it implements io.Closer.
func CloseSink(s MetricsSink) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
