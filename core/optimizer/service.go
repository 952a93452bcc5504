// Package optimizer ties planning, dispatch and persistence together into
// the operations exposed by the HTTP API and the CLI.
package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yaswanthhh/ev-charge-optimizer/core/dispatch"
	"github.com/yaswanthhh/ev-charge-optimizer/core/events"
	"github.com/yaswanthhh/ev-charge-optimizer/core/logger"
	"github.com/yaswanthhh/ev-charge-optimizer/core/metrics"
	coremon "github.com/yaswanthhh/ev-charge-optimizer/core/monitoring"
	"github.com/yaswanthhh/ev-charge-optimizer/core/model"
	"github.com/yaswanthhh/ev-charge-optimizer/core/ocpp"
	"github.com/yaswanthhh/ev-charge-optimizer/core/planner"
	"github.com/yaswanthhh/ev-charge-optimizer/core/runs"
	"github.com/yaswanthhh/ev-charge-optimizer/internal/eventbus"
)

// Dispatcher pushes schedules and single profiles to stations.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) []model.DispatchOutcome
	DispatchProfile(ctx context.Context, runID, chargerID string, msg ocpp.SetChargingProfile) model.DispatchOutcome
}

// ProfileRequest asks for the profile of a single connector.
type ProfileRequest struct {
	ConnectorID *int      `json:"connectorId"`
	PerStepKW   []float64 `json:"perStepKw"`
	StepSeconds *int      `json:"stepSeconds,omitempty"`
}

// DispatchRequest carries a prebuilt profile for one station.
type DispatchRequest struct {
	ChargerID          string                   `json:"chargerId"`
	SetChargingProfile *ocpp.SetChargingProfile `json:"setChargingProfile"`
}

// Service implements the optimize, dispatch and run operations.
type Service struct {
	defaults model.Defaults
	profile  ocpp.ProfileOptions
	disp     Dispatcher
	store    runs.Store
	sink     metrics.MetricsSink
	logger   logger.Logger

	mu  sync.RWMutex
	bus *eventbus.Bus[events.Event]
}

// NewService wires the collaborators. A nil sink records nothing.
func NewService(d model.Defaults, profile ocpp.ProfileOptions, disp Dispatcher, store runs.Store, sink metrics.MetricsSink, log logger.Logger) *Service {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Service{defaults: d, profile: profile, disp: disp, store: store, sink: sink, logger: log}
}

// SetEventBus configures the bus receiving one RunEvent per run.
func (s *Service) SetEventBus(bus *eventbus.Bus[events.Event]) {
	s.mu.Lock()
	s.bus = bus
	s.mu.Unlock()
}

// Defaults returns the values applied to omitted request fields.
func (s *Service) Defaults() model.Defaults { return s.defaults }

// Optimize validates req and returns its schedule without dispatching it.
func (s *Service) Optimize(req model.OptimizationRequest) (model.OptimizeOutput, error) {
	start := time.Now()
	p, err := req.Resolve(s.defaults)
	if err != nil {
		return model.OptimizeOutput{}, err
	}
	out, err := planner.Optimize(p)
	if err != nil {
		return model.OptimizeOutput{}, err
	}
	if rec, ok := s.sink.(metrics.OptimizeRecorder); ok {
		ev := metrics.OptimizeEvent{
			Policy:     p.Policy,
			Steps:      p.Steps,
			Connectors: p.Connectors(),
			Duration:   time.Since(start),
			Time:       start,
		}
		if err := rec.RecordOptimize(ev); err != nil {
			s.logger.Warnf("record optimize: %v", err)
		}
	}
	return out, nil
}

// EncodeProfile builds the profile of one connector from a kW row.
func (s *Service) EncodeProfile(req ProfileRequest) (ocpp.SetChargingProfile, error) {
	if req.ConnectorID == nil || *req.ConnectorID < 0 {
		return ocpp.SetChargingProfile{}, fmt.Errorf("%w: connectorId required (>= 0)", model.ErrInvalidRequest)
	}
	if len(req.PerStepKW) == 0 {
		return ocpp.SetChargingProfile{}, fmt.Errorf("%w: perStepKw[] required", model.ErrInvalidRequest)
	}
	for i, kw := range req.PerStepKW {
		if kw < 0 {
			return ocpp.SetChargingProfile{}, fmt.Errorf("%w: perStepKw[%d] must be >= 0", model.ErrInvalidRequest, i)
		}
	}
	step := s.defaults.StepSeconds
	if req.StepSeconds != nil {
		if *req.StepSeconds <= 0 {
			return ocpp.SetChargingProfile{}, fmt.Errorf("%w: stepSeconds must be > 0", model.ErrInvalidRequest)
		}
		step = *req.StepSeconds
	}
	return ocpp.BuildProfile(*req.ConnectorID, req.PerStepKW, step, s.profile), nil
}

// DispatchProfile sends a prebuilt profile and reports its outcome.
func (s *Service) DispatchProfile(ctx context.Context, req DispatchRequest) (model.DispatchOutcome, error) {
	if req.ChargerID == "" || req.SetChargingProfile == nil {
		return model.DispatchOutcome{}, fmt.Errorf("%w: chargerId and setChargingProfile required", model.ErrInvalidRequest)
	}
	if err := model.ValidateChargerID(req.ChargerID); err != nil {
		return model.DispatchOutcome{}, err
	}
	if err := req.SetChargingProfile.Validate(); err != nil {
		return model.DispatchOutcome{}, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err)
	}
	return s.disp.DispatchProfile(ctx, uuid.NewString(), req.ChargerID, *req.SetChargingProfile), nil
}

// SaveRun stores an arbitrary input/output pair.
func (s *Service) SaveRun(ctx context.Context, input, output json.RawMessage) (runs.Saved, error) {
	if isEmptyDocument(input) || isEmptyDocument(output) {
		return runs.Saved{}, fmt.Errorf("%w: input and output required", model.ErrInvalidRequest)
	}
	saved, err := s.store.Save(ctx, input, output)
	if err != nil {
		coremon.CaptureException(err, map[string]string{"stage": "save_run"})
		return runs.Saved{}, err
	}
	return saved, nil
}

// GetRun fetches a stored run. It returns runs.ErrNotFound for unknown ids.
func (s *Service) GetRun(ctx context.Context, id int64) (runs.Record, error) {
	return s.store.Get(ctx, id)
}

// RunAndDispatch plans req, dispatches one profile per connector, then
// persists the request with the schedule and the outcomes. Only validation
// and persistence failures are errors.
func (s *Service) RunAndDispatch(ctx context.Context, req model.OptimizationRequest) (model.RunResult, error) {
	start := time.Now()
	runID := uuid.NewString()
	p, err := req.Resolve(s.defaults)
	if err != nil {
		return model.RunResult{}, err
	}
	sched, err := planner.Optimize(p)
	if err != nil {
		return model.RunResult{}, err
	}

	outcomes := s.disp.Dispatch(ctx, dispatch.Request{
		RunID:       runID,
		ChargerID:   p.ChargerID,
		Schedule:    sched,
		Connectors:  p.Connectors(),
		StepSeconds: p.StepSeconds,
	})
	out := model.RunOutput{OptimizeOutput: sched, DispatchResults: outcomes}

	// persistence must not be skipped because the caller went away
	saved, err := runs.Persist(context.WithoutCancel(ctx), s.store, req, out)
	if err != nil {
		coremon.CaptureException(err, coremon.RunTags(runID, p.ChargerID, "persist"))
		logger.Errorw(s.logger, "run not persisted", map[string]any{
			"run_id":     runID,
			"charger_id": p.ChargerID,
			"schedule":   sched,
			"outcomes":   model.CountByStatus(outcomes),
			"error":      err.Error(),
		})
		s.publish(events.RunEvent{RunID: runID, ChargerID: p.ChargerID, Counts: model.CountByStatus(outcomes), Duration: time.Since(start), Err: err})
		return model.RunResult{}, fmt.Errorf("persist run %s: %w", runID, err)
	}

	summary := metrics.Summarize(runID, p, sched, outcomes, start)
	summary.StoredID = saved.ID
	if err := s.sink.RecordRun(summary); err != nil {
		s.logger.Warnf("run %s: record metrics: %v", runID, err)
	}
	s.publish(events.RunEvent{
		RunID:     runID,
		StoredID:  saved.ID,
		ChargerID: p.ChargerID,
		Counts:    model.CountByStatus(outcomes),
		Duration:  summary.Duration,
	})
	return model.RunResult{
		RunID:           saved.ID,
		CreatedAt:       saved.CreatedAt,
		OptimizeOutput:  sched,
		DispatchResults: outcomes,
	}, nil
}

func (s *Service) publish(ev events.Event) {
	s.mu.RLock()
	bus := s.bus
	s.mu.RUnlock()
	if bus != nil {
		bus.Publish(ev)
	}
}

func isEmptyDocument(raw json.RawMessage) bool {
	switch string(raw) {
	case "", "null", `""`, "false", "0":
		return true
	}
	return false
}
