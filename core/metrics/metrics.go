package metrics

import (
	"time"

	"github.com/yaswanthhh/ev-charge-optimizer/core/model"
)

// OutcomeRecord is the dispatch result of one connector.
type OutcomeRecord struct {
	ConnectorID int
	Status      model.DispatchStatus
	Latency     time.Duration
	// PeakKW is the highest power of the connector's schedule.
	PeakKW float64
}

// RunSummary describes a finished optimize-and-dispatch run.
type RunSummary struct {
	RunID            string
	StoredID         int64
	ChargerID        string
	Policy           model.Policy
	StepSeconds      int
	Start            time.Time
	Duration         time.Duration
	SiteKW           []float64
	EffectiveCapKW   []float64
	EstimatedCostSEK *float64
	Outcomes         []OutcomeRecord
	// Delivered counts the connectors whose station confirmed the profile.
	Delivered int
}

// Summarize builds the summary of a run from its parts.
func Summarize(runID string, p model.Params, out model.OptimizeOutput, outcomes []model.DispatchOutcome, start time.Time) RunSummary {
	s := RunSummary{
		RunID:            runID,
		ChargerID:        p.ChargerID,
		Policy:           p.Policy,
		StepSeconds:      p.StepSeconds,
		Start:            start,
		Duration:         time.Since(start),
		SiteKW:           out.SiteKW,
		EffectiveCapKW:   out.EffectiveCapKW,
		EstimatedCostSEK: out.EstimatedCostSEK,
		Outcomes:         make([]OutcomeRecord, len(outcomes)),
	}
	for i, o := range outcomes {
		peak := 0.0
		for _, kw := range out.ConnectorRow(o.ConnectorID - 1) {
			if kw > peak {
				peak = kw
			}
		}
		s.Outcomes[i] = OutcomeRecord{ConnectorID: o.ConnectorID, Status: o.Status, Latency: o.Latency, PeakKW: peak}
		if o.Delivered() {
			s.Delivered++
		}
	}
	return s
}

// MetricsSink records finished runs for observability purposes.
type MetricsSink interface {
	RecordRun(run RunSummary) error
}

// OptimizeEvent describes a planner invocation that did not dispatch.
type OptimizeEvent struct {
	Policy     model.Policy
	Steps      int
	Connectors int
	Duration   time.Duration
	Time       time.Time
}

// OptimizeRecorder is implemented by sinks able to record planner calls.
type OptimizeRecorder interface {
	RecordOptimize(ev OptimizeEvent) error
}

// StationRecorder is implemented by sinks tracking connected stations.
type StationRecorder interface {
	RecordStationCount(n int) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunSummary) error         { return nil }
func (NopSink) RecordOptimize(OptimizeEvent) error { return nil }
func (NopSink) RecordStationCount(int) error       { return nil }
