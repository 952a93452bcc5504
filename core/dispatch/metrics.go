package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ackWait      *prometheus.HistogramVec
	stationSends *prometheus.CounterVec
	inflight     prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Gauge) {
	wait := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_ack_wait_seconds",
			Help:    "Time between profile send and the end of the acknowledgment wait",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"status"},
	)
	sends := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_station_sends_total",
			Help: "Number of profile frames handed to a station transport",
		},
		[]string{"result"},
	)
	fl := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_inflight_connectors",
			Help: "Connector dispatches currently waiting for a terminal status",
		},
	)
	return wait, sends, fl
}

func init() {
	ackWait, stationSends, inflight = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(ackWait, stationSends, inflight)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	ackWait, stationSends, inflight = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
