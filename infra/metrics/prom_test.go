package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/spotmarket/core/metrics"
	"github.com/kilianp07/spotmarket/core/model"
)

func TestPromSink_RecordDispatchResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	res := []model.DispatchResult{
		{
			Interval:  "i1",
			Status:    model.StatusOptimal,
			Dispatch:  []model.UnitDispatch{{Unit: "A", Service: model.Energy, Dispatch: 40}},
			Prices:    []model.RegionPrice{{Region: "NSW1", Service: model.Energy, Price: 60}},
			SolveTime: 10 * time.Millisecond,
		},
		{Interval: "i2", Status: model.StatusInfeasible},
	}
	if err := sink.RecordDispatchResult(res); err != nil {
		t.Fatalf("record error: %v", err)
	}

	expected := `
# HELP spotmarket_intervals_total Cleared intervals by outcome
# TYPE spotmarket_intervals_total counter
spotmarket_intervals_total{status="infeasible"} 1
spotmarket_intervals_total{status="optimal"} 1
`
	if err := testutil.CollectAndCompare(sink.intervals, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if v := testutil.ToFloat64(sink.prices.WithLabelValues("NSW1", "energy")); v != 60 {
		t.Errorf("price gauge = %v", v)
	}
	if v := testutil.ToFloat64(sink.dispatch.WithLabelValues("A", "energy")); v != 40 {
		t.Errorf("dispatch gauge = %v", v)
	}
	if c := testutil.CollectAndCount(sink.solve); c != 2 {
		t.Errorf("solve histogram series = %d", c)
	}

	if err := sink.RecordBatch(coremetrics.BatchSummary{Intervals: 2, Failed: 1}); err != nil {
		t.Fatalf("record batch: %v", err)
	}
	if v := testutil.ToFloat64(sink.failed); v != 1 {
		t.Errorf("failed gauge = %v", v)
	}
}

func TestPromSink_NonOptimalKeepsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	ok := model.DispatchResult{Status: model.StatusOptimal,
		Prices: []model.RegionPrice{{Region: "VIC1", Service: model.RaiseReg, Price: 12}}}
	bad := model.DispatchResult{Status: model.StatusError,
		Prices: []model.RegionPrice{{Region: "VIC1", Service: model.RaiseReg, Price: 999}}}
	if err := sink.RecordDispatchResult([]model.DispatchResult{ok, bad}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if v := testutil.ToFloat64(sink.prices.WithLabelValues("VIC1", "raise_reg")); v != 12 {
		t.Errorf("failed interval overwrote gauge: %v", v)
	}
}

func TestNewPromSinkWithRegistry_AlreadyRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.intervals != second.intervals {
		t.Fatalf("expected existing collector to be reused")
	}
}
