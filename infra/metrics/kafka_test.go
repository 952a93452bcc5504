package metrics

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/yaswanthhh/ev-charge-optimizer/core/metrics"
	"github.com/yaswanthhh/ev-charge-optimizer/core/model"
)

func TestKafkaSink_RecordRun(t *testing.T) {
	producer := mocks.NewSyncProducer(t, ProducerConfig(KafkaConfig{}))
	var got runMessage
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		return json.Unmarshal(val, &got)
	})
	sink := NewKafkaSinkWithProducer(producer, "runs")

	cost := 10.0
	err := sink.RecordRun(coremetrics.RunSummary{
		RunID:            "r1",
		StoredID:         7,
		ChargerID:        "cp-1",
		StepSeconds:      900,
		Duration:         1500 * time.Millisecond,
		SiteKW:           []float64{20},
		EstimatedCostSEK: &cost,
		Outcomes: []coremetrics.OutcomeRecord{
			{ConnectorID: 1, Status: model.StatusAccepted, Latency: 40 * time.Millisecond, PeakKW: 10},
		},
		Delivered: 1,
	})
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, int64(7), got.StoredID)
	assert.Equal(t, "equal", got.Policy)
	assert.Equal(t, int64(1500), got.DurationMS)
	require.NotNil(t, got.EstimatedCostSEK)
	assert.Equal(t, 10.0, *got.EstimatedCostSEK)
	require.Len(t, got.Outcomes, 1)
	assert.Equal(t, "Accepted", got.Outcomes[0].Status)
	assert.Equal(t, int64(40), got.Outcomes[0].LatencyMS)
	assert.Equal(t, 1, got.Delivered)
}

func TestKafkaSink_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, ProducerConfig(KafkaConfig{}))
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	sink := NewKafkaSinkWithProducer(producer, "runs")

	err := sink.RecordRun(coremetrics.RunSummary{RunID: "r2", ChargerID: "cp-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sarama.ErrOutOfBrokers))
	assert.ErrorContains(t, err, "r2")
	require.NoError(t, sink.Close())
}

func TestNewKafkaSinkValidatesConfig(t *testing.T) {
	_, err := NewKafkaSink(KafkaConfig{Topic: "runs"})
	assert.ErrorContains(t, err, "brokers")
	_, err = NewKafkaSink(KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.ErrorContains(t, err, "topic")
}

func TestProducerConfig(t *testing.T) {
	c := ProducerConfig(KafkaConfig{ClientID: "evopt"})
	assert.True(t, c.Producer.Return.Successes)
	assert.Equal(t, sarama.WaitForAll, c.Producer.RequiredAcks)
	assert.Equal(t, "evopt", c.ClientID)
	assert.NoError(t, c.Validate())
}
