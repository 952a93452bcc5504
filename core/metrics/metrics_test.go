package metrics_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/yaswanthhh/ev-charge-optimizer/core/factory"
	metrics "github.com/yaswanthhh/ev-charge-optimizer/core/metrics"
	"github.com/yaswanthhh/ev-charge-optimizer/core/model"
)

type recordSink struct {
	runs     int
	optimize int
	stations int
	err      error
}

func (r *recordSink) RecordRun(metrics.RunSummary) error { r.runs++; return r.err }

func (r *recordSink) RecordOptimize(metrics.OptimizeEvent) error { r.optimize++; return nil }

type runOnlySink struct{ runs int }

func (r *runOnlySink) RecordRun(metrics.RunSummary) error { r.runs++; return nil }

func TestMultiSinkForwardsToEverySink(t *testing.T) {
	failing := &recordSink{err: errors.New("influx down")}
	plain := &runOnlySink{}
	m := metrics.NewMultiSink(failing, plain)

	assert.EqualError(t, m.RecordRun(metrics.RunSummary{}), "influx down")
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, plain.runs, "later sinks still see the run")

	require.NoError(t, m.RecordOptimize(metrics.OptimizeEvent{}))
	assert.Equal(t, 1, failing.optimize)
	require.NoError(t, m.RecordStationCount(3))
}

func TestNewMetricsSinkFromConfig(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	require.NoError(t, err)
	multi, ok := s.(*metrics.MultiSink)
	require.True(t, ok)
	assert.Len(t, multi.Sinks, 2)

	_, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}})
	assert.Error(t, err)
}

func TestMetricsConfigDecode(t *testing.T) {
	var fromYAML metrics.Config
	require.NoError(t, yaml.Unmarshal([]byte("sinks:\n  - type: nop\n  - type: prometheus\nprometheus_addr: \":9100\"\n"), &fromYAML))
	assert.True(t, fromYAML.HasSink("prometheus"))
	assert.Equal(t, ":9100", fromYAML.PrometheusAddr)

	var fromJSON metrics.Config
	require.NoError(t, json.Unmarshal([]byte(`{"sinks":[{"type":"kafka","conf":{"topic":"runs"}}]}`), &fromJSON))
	require.Len(t, fromJSON.Sinks, 1)
	assert.Equal(t, "runs", fromJSON.Sinks[0].Conf["topic"])
	assert.False(t, fromJSON.HasSink("influx"))
}

func TestSummarize(t *testing.T) {
	p := model.Params{ChargerID: "cp-1", Policy: model.PolicyEqualShare, StepSeconds: 900}
	out := model.OptimizeOutput{
		Steps:          2,
		PerConnectorKW: [][]float64{{4, 7}, {6, 2}},
		SiteKW:         []float64{11, 8},
		EffectiveCapKW: []float64{11, 8},
	}
	outcomes := []model.DispatchOutcome{
		{ConnectorID: 1, Status: model.StatusAccepted, Latency: 5 * time.Millisecond},
		{ConnectorID: 2, Status: model.StatusNoAckYet},
	}
	s := metrics.Summarize("r1", p, out, outcomes, time.Now())
	assert.Equal(t, "cp-1", s.ChargerID)
	require.Len(t, s.Outcomes, 2)
	assert.Equal(t, 6.0, s.Outcomes[0].PeakKW)
	assert.Equal(t, 7.0, s.Outcomes[1].PeakKW)
	assert.Equal(t, model.StatusNoAckYet, s.Outcomes[1].Status)
	assert.Equal(t, 1, s.Delivered)
}

type closingSink struct {
	runOnlySink
	closed bool
}

func (c *closingSink) Close() error { c.closed = true; return nil }

func TestMultiSinkCloseReachesClosers(t *testing.T) {
	c := &closingSink{}
	m := metrics.NewMultiSink(c, &runOnlySink{})
	require.NoError(t, m.Close())
	assert.True(t, c.closed)
	assert.NoError(t, metrics.CloseSink(metrics.NopSink{}))
}
