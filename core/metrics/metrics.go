package metrics

import (
	"time"

	"github.com/kilianp07/spotmarket/core/model"
)

// MetricsSink records cleared intervals for observability purposes.
type MetricsSink interface {
	RecordDispatchResult(results []model.DispatchResult) error
}

// BatchSummary describes a finished batch run.
type BatchSummary struct {
	RunID     string
	Intervals int
	Failed    int
	Duration  time.Duration
	Time      time.Time
}

// BatchRecorder records batch summaries.
type BatchRecorder interface {
	RecordBatch(ev BatchSummary) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordDispatchResult([]model.DispatchResult) error { return nil }
func (NopSink) RecordBatch(BatchSummary) error                   { return nil }
