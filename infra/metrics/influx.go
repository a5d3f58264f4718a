package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/spotmarket/core/metrics"
	"github.com/kilianp07/spotmarket/core/model"
	"github.com/kilianp07/spotmarket/infra/logger"
)

// InfluxConfig holds the connection settings of an InfluxSink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes cleared intervals to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
	now      func() time.Time
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
		now:      time.Now,
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

// RecordDispatchResult writes one interval point per result followed by its
// prices, unit dispatch and interconnector flows.
func (s *InfluxSink) RecordDispatchResult(res []model.DispatchResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range res {
		if err := s.writeAPI.WritePoint(ctx, s.points(r)...); err != nil {
			return err
		}
	}
	return nil
}

func (s *InfluxSink) points(r model.DispatchResult) []*write.Point {
	ts := r.SolvedAt
	if ts.IsZero() {
		ts = s.now()
	}
	points := []*write.Point{
		write.NewPointWithMeasurement("interval").
			AddTag("interval", r.Interval).
			AddTag("status", string(r.Status)).
			AddField("objective", round3(r.Objective)).
			AddField("solve_ms", round3(float64(r.SolveTime)/float64(time.Millisecond))).
			SetTime(ts),
	}
	for _, p := range r.Prices {
		points = append(points, write.NewPointWithMeasurement("region_price").
			AddTag("interval", r.Interval).
			AddTag("region", p.Region).
			AddTag("service", string(p.Service)).
			AddField("price", round3(p.Price)).
			SetTime(ts))
	}
	for _, d := range r.Dispatch {
		points = append(points, write.NewPointWithMeasurement("unit_dispatch").
			AddTag("interval", r.Interval).
			AddTag("unit", d.Unit).
			AddTag("service", string(d.Service)).
			AddField("dispatch_mw", round3(d.Dispatch)).
			SetTime(ts))
	}
	for _, f := range r.Interconnectors {
		points = append(points, write.NewPointWithMeasurement("interconnector_flow").
			AddTag("interval", r.Interval).
			AddTag("interconnector", f.Interconnector).
			AddField("flow_mw", round3(f.Flow)).
			AddField("losses_mw", round3(f.Losses)).
			SetTime(ts))
	}
	return points
}

// RecordBatch writes a batch summary point.
func (s *InfluxSink) RecordBatch(ev coremetrics.BatchSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ts := ev.Time
	if ts.IsZero() {
		ts = s.now()
	}
	p := write.NewPointWithMeasurement("batch_run").
		AddTag("run_id", ev.RunID).
		AddField("intervals", ev.Intervals).
		AddField("failed", ev.Failed).
		AddField("duration_ms", round3(float64(ev.Duration)/float64(time.Millisecond))).
		SetTime(ts)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
