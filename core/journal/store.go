// Package journal keeps an append-only record of cleared intervals.
package journal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/spotmarket/core/model"
)

// Record captures one cleared interval.
type Record struct {
	ID         string               `json:"id"`
	RunID      string               `json:"run_id,omitempty"`
	RecordedAt time.Time            `json:"recorded_at"`
	Result     model.DispatchResult `json:"result"`
}

// NewRecord wraps res in a record with a fresh id.
func NewRecord(runID string, res model.DispatchResult) Record {
	return Record{
		ID:         uuid.NewString(),
		RunID:      runID,
		RecordedAt: time.Now().UTC(),
		Result:     res,
	}
}

// Query defines filters for retrieving records. Zero fields match everything.
type Query struct {
	Start    time.Time
	End      time.Time
	RunID    string
	Interval string
	Status   model.Status
	// Unit keeps records in which the unit was dispatched for any service.
	Unit string
}

// Store persists records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

func (q Query) matches(r Record) bool {
	if !q.Start.IsZero() && r.RecordedAt.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.RecordedAt.After(q.End) {
		return false
	}
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if q.Interval != "" && r.Result.Interval != q.Interval {
		return false
	}
	if q.Status != "" && r.Result.Status != q.Status {
		return false
	}
	if q.Unit != "" {
		for _, d := range r.Result.Dispatch {
			if d.Unit == q.Unit {
				return true
			}
		}
		return false
	}
	return true
}
