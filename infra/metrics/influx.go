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

	coremetrics "github.com/yaswanthhh/ev-charge-optimizer/core/metrics"
	"github.com/yaswanthhh/ev-charge-optimizer/infra/logger"
)

// InfluxSink writes run outcomes and schedules to an InfluxDB instance.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// InfluxConfig holds the connection settings of the influx sink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
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

// RecordRun writes one dispatch_outcome point per connector and one
// site_schedule point per step. Step points are stamped at the step start.
func (s *InfluxSink) RecordRun(run coremetrics.RunSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(run.Outcomes)+len(run.SiteKW))
	for _, o := range run.Outcomes {
		p := write.NewPointWithMeasurement("dispatch_outcome").
			AddTag("run_id", run.RunID).
			AddTag("charger_id", run.ChargerID).
			AddTag("connector_id", connectorLabel(o.ConnectorID)).
			AddTag("status", string(o.Status)).
			AddField("latency_ms", round3(o.Latency.Seconds()*1000)).
			AddField("peak_kw", round3(o.PeakKW)).
			SetTime(run.Start)
		points = append(points, p)
	}
	step := time.Duration(run.StepSeconds) * time.Second
	for t, kw := range run.SiteKW {
		p := write.NewPointWithMeasurement("site_schedule").
			AddTag("run_id", run.RunID).
			AddTag("charger_id", run.ChargerID).
			AddTag("policy", policyLabel(run.Policy)).
			AddField("step", t).
			AddField("site_kw", round3(kw))
		if t < len(run.EffectiveCapKW) {
			p = p.AddField("effective_cap_kw", round3(run.EffectiveCapKW[t]))
		}
		points = append(points, p.SetTime(run.Start.Add(time.Duration(t)*step)))
	}
	if len(points) == 0 {
		return nil
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordOptimize writes a planner call.
func (s *InfluxSink) RecordOptimize(ev coremetrics.OptimizeEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("optimize_call").
		AddTag("policy", policyLabel(ev.Policy)).
		AddField("steps", ev.Steps).
		AddField("connectors", ev.Connectors).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordStationCount writes the number of connected stations.
func (s *InfluxSink) RecordStationCount(n int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("station_connections").
		AddField("count", n).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
