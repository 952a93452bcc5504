package metrics

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shopify/sarama"

	coremetrics "github.com/yaswanthhh/ev-charge-optimizer/core/metrics"
)

// KafkaConfig holds the producer settings of the kafka sink.
type KafkaConfig struct {
	Brokers  []string `json:"brokers"`
	Topic    string   `json:"topic"`
	ClientID string   `json:"client_id"`
}

// KafkaSink publishes one JSON message per finished run.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

type outcomeMessage struct {
	ConnectorID int     `json:"connectorId"`
	Status      string  `json:"status"`
	LatencyMS   int64   `json:"latencyMs"`
	PeakKW      float64 `json:"peakKw"`
}

type runMessage struct {
	RunID            string           `json:"runId"`
	StoredID         int64            `json:"storedId"`
	ChargerID        string           `json:"chargerId"`
	Policy           string           `json:"policy"`
	StepSeconds      int              `json:"stepSeconds"`
	Start            time.Time        `json:"start"`
	DurationMS       int64            `json:"durationMs"`
	SiteKW           []float64        `json:"siteKw"`
	EffectiveCapKW   []float64        `json:"effectiveCapKw"`
	EstimatedCostSEK *float64         `json:"estimatedCostSek"`
	Outcomes         []outcomeMessage `json:"outcomes"`
	Delivered        int              `json:"delivered"`
}

// NewKafkaSink connects a synchronous producer to the brokers.
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: brokers required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, ProducerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewKafkaSinkWithProducer(producer, cfg.Topic), nil
}

// ProducerConfig returns the sarama settings used by the sink.
func ProducerConfig(cfg KafkaConfig) *sarama.Config {
	sc := sarama.NewConfig()
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Retry.Backoff = 100 * time.Millisecond
	return sc
}

// NewKafkaSinkWithProducer wraps an existing producer.
func NewKafkaSinkWithProducer(p sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

// RecordRun publishes the run keyed by charger id so the runs of a station
// stay ordered within a partition.
func (s *KafkaSink) RecordRun(run coremetrics.RunSummary) error {
	msg := runMessage{
		RunID:            run.RunID,
		StoredID:         run.StoredID,
		ChargerID:        run.ChargerID,
		Policy:           policyLabel(run.Policy),
		StepSeconds:      run.StepSeconds,
		Start:            run.Start,
		DurationMS:       run.Duration.Milliseconds(),
		SiteKW:           run.SiteKW,
		EffectiveCapKW:   run.EffectiveCapKW,
		EstimatedCostSEK: run.EstimatedCostSEK,
		Outcomes:         make([]outcomeMessage, len(run.Outcomes)),
		Delivered:        run.Delivered,
	}
	for i, o := range run.Outcomes {
		msg.Outcomes[i] = outcomeMessage{
			ConnectorID: o.ConnectorID,
			Status:      string(o.Status),
			LatencyMS:   o.Latency.Milliseconds(),
			PeakKW:      o.PeakKW,
		}
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, _, err = s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(run.ChargerID),
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		return fmt.Errorf("kafka send run %s: %w", run.RunID, err)
	}
	return nil
}

// Close flushes and closes the producer.
func (s *KafkaSink) Close() error { return s.producer.Close() }
