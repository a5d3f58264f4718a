package metrics

import "github.com/kilianp07/spotmarket/core/model"

// MultiSink fans results out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDispatchResult forwards the results to all sinks, returning the first error encountered.
func (m *MultiSink) RecordDispatchResult(res []model.DispatchResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordDispatchResult(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordBatch forwards the summary to the sinks that record batches.
func (m *MultiSink) RecordBatch(ev BatchSummary) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(BatchRecorder); ok {
			if err := rec.RecordBatch(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
