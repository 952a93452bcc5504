package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaswanthhh/ev-charge-optimizer/core/factory"
	coremetrics "github.com/yaswanthhh/ev-charge-optimizer/core/metrics"
)

func TestFactoryBuildsPrometheusSink(t *testing.T) {
	sink, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "prometheus"}})
	require.NoError(t, err)
	assert.IsType(t, &PromSink{}, sink)
}

func TestFactoryFansOutToSeveralSinks(t *testing.T) {
	sink, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "prometheus"}, {Type: "nop"}})
	require.NoError(t, err)
	multi, ok := sink.(*coremetrics.MultiSink)
	require.True(t, ok)
	assert.Len(t, multi.Sinks, 2)
}

func TestFactoryKafkaRequiresBrokers(t *testing.T) {
	_, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "kafka", Conf: map[string]any{"topic": "runs"}}})
	assert.ErrorContains(t, err, "brokers")
}
