package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/yaswanthhh/ev-charge-optimizer/core/metrics"
	"github.com/yaswanthhh/ev-charge-optimizer/core/model"
)

// PromSink records run outcomes in Prometheus metrics.
type PromSink struct {
	outcomes    *prometheus.CounterVec
	ackLatency  *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	stations    prometheus.Gauge
}

// NewPromSink registers run metrics on the default Prometheus registerer.
// The metrics are served by the API server or by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	outcomes, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_outcomes_total",
		Help: "Connector dispatch outcomes by terminal status",
	}, []string{"status"}))
	if err != nil {
		return nil, err
	}
	latency, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_ack_latency_seconds",
		Help:    "Time between profile send and acknowledgment or deadline",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"status"}))
	if err != nil {
		return nil, err
	}
	runs, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "optimize_runs_total",
		Help: "Planner invocations by policy and mode (plan or dispatch)",
	}, []string{"policy", "mode"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "run_duration_seconds",
		Help:    "Wall time of run-and-dispatch requests",
		Buckets: prometheus.DefBuckets,
	}))
	if err != nil {
		return nil, err
	}
	stations, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "station_connections",
		Help: "Stations with a live connection",
	}))
	if err != nil {
		return nil, err
	}
	return &PromSink{
		outcomes:    outcomes,
		ackLatency:  latency,
		runs:        runs,
		runDuration: duration,
		stations:    stations,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRun counts every connector outcome and observes the latency of the
// connectors that were actually sent.
func (s *PromSink) RecordRun(run coremetrics.RunSummary) error {
	for _, o := range run.Outcomes {
		status := string(o.Status)
		s.outcomes.WithLabelValues(status).Inc()
		if o.Status == model.StatusAccepted || o.Status == model.StatusNoAckYet {
			s.ackLatency.WithLabelValues(status).Observe(o.Latency.Seconds())
		}
	}
	s.runs.WithLabelValues(policyLabel(run.Policy), "dispatch").Inc()
	s.runDuration.Observe(run.Duration.Seconds())
	return nil
}

// RecordOptimize counts a planner call that did not dispatch.
func (s *PromSink) RecordOptimize(ev coremetrics.OptimizeEvent) error {
	s.runs.WithLabelValues(policyLabel(ev.Policy), "plan").Inc()
	return nil
}

// RecordStationCount sets the gauge to the number of connected stations.
func (s *PromSink) RecordStationCount(n int) error {
	if s.stations != nil {
		s.stations.Set(float64(n))
	}
	return nil
}

func policyLabel(p model.Policy) string {
	if p == "" {
		return string(model.PolicyEqualShare)
	}
	return string(p)
}

func connectorLabel(id int) string { return strconv.Itoa(id) }
