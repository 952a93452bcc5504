package optimizer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaswanthhh/ev-charge-optimizer/core/dispatch"
	"github.com/yaswanthhh/ev-charge-optimizer/core/events"
	"github.com/yaswanthhh/ev-charge-optimizer/core/metrics"
	coremon "github.com/yaswanthhh/ev-charge-optimizer/core/monitoring"
	"github.com/yaswanthhh/ev-charge-optimizer/core/model"
	"github.com/yaswanthhh/ev-charge-optimizer/core/ocpp"
	"github.com/yaswanthhh/ev-charge-optimizer/core/runs"
	"github.com/yaswanthhh/ev-charge-optimizer/infra/logger"
	"github.com/yaswanthhh/ev-charge-optimizer/internal/eventbus"
)

type fakeDispatcher struct {
	status  model.DispatchStatus
	lastReq dispatch.Request
	profile ocpp.SetChargingProfile
	charger string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, req dispatch.Request) []model.DispatchOutcome {
	f.lastReq = req
	out := make([]model.DispatchOutcome, req.Connectors)
	for i := range out {
		out[i] = model.DispatchOutcome{
			ConnectorID:        i + 1,
			Status:             f.status,
			ChargerID:          req.ChargerID,
			SetChargingProfile: ocpp.BuildProfile(i+1, req.Schedule.ConnectorRow(i), req.StepSeconds, ocpp.DefaultProfileOptions()),
		}
	}
	return out
}

func (f *fakeDispatcher) DispatchProfile(_ context.Context, _ string, chargerID string, msg ocpp.SetChargingProfile) model.DispatchOutcome {
	f.charger = chargerID
	f.profile = msg
	return model.DispatchOutcome{ConnectorID: msg.ConnectorID, Status: f.status, ChargerID: chargerID, SetChargingProfile: msg}
}

type failingStore struct{ runs.Store }

func (failingStore) Save(context.Context, json.RawMessage, json.RawMessage) (runs.Saved, error) {
	return runs.Saved{}, errors.New("disk full")
}

type recordingSink struct {
	metrics.NopSink
	runs      []metrics.RunSummary
	optimizes []metrics.OptimizeEvent
}

func (r *recordingSink) RecordRun(s metrics.RunSummary) error {
	r.runs = append(r.runs, s)
	return nil
}

func (r *recordingSink) RecordOptimize(ev metrics.OptimizeEvent) error {
	r.optimizes = append(r.optimizes, ev)
	return nil
}

type captureMonitor struct {
	coremon.NopMonitor
	err  error
	tags map[string]string
}

func (c *captureMonitor) CaptureException(err error, tags map[string]string) {
	c.err = err
	c.tags = tags
}

func newService(disp Dispatcher, store runs.Store, sink metrics.MetricsSink) *Service {
	return NewService(model.StandardDefaults(), ocpp.DefaultProfileOptions(), disp, store, sink, logger.NopLogger{})
}

func intPtr(v int) *int { return &v }

func TestOptimizeRecordsPlannerCall(t *testing.T) {
	sink := &recordingSink{}
	s := newService(&fakeDispatcher{}, runs.NewMemoryStore(), sink)
	out, err := s.Optimize(model.OptimizationRequest{SiteMaxKW: 20, ConnectorMaxKW: []float64{11, 11}, Steps: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{10, 10}}, out.PerConnectorKW)
	assert.Equal(t, []float64{20}, out.SiteKW)
	require.Len(t, sink.optimizes, 1)
	assert.Equal(t, 2, sink.optimizes[0].Connectors)
	assert.Equal(t, model.PolicyEqualShare, sink.optimizes[0].Policy)
}

func TestOptimizeRejectsInvalidRequest(t *testing.T) {
	s := newService(&fakeDispatcher{}, runs.NewMemoryStore(), nil)
	_, err := s.Optimize(model.OptimizationRequest{SiteMaxKW: 0, ConnectorMaxKW: []float64{11}})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestRunAndDispatchPersistsRun(t *testing.T) {
	store := runs.NewMemoryStore()
	sink := &recordingSink{}
	disp := &fakeDispatcher{status: model.StatusAccepted}
	s := newService(disp, store, sink)
	bus := eventbus.New[events.Event]()
	defer bus.Close()
	sub := bus.Subscribe()
	s.SetEventBus(bus)

	res, err := s.RunAndDispatch(context.Background(), model.OptimizationRequest{
		SiteMaxKW: 20, ConnectorMaxKW: []float64{11, 11}, Steps: intPtr(1), ChargerID: "charger-001",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RunID)
	assert.Equal(t, []float64{20}, res.OptimizeOutput.SiteKW)
	require.Len(t, res.DispatchResults, 2)
	assert.Equal(t, 2, disp.lastReq.Connectors)
	assert.Equal(t, 900, disp.lastReq.StepSeconds)
	assert.NotEmpty(t, disp.lastReq.RunID)

	rec, err := store.Get(context.Background(), res.RunID)
	require.NoError(t, err)
	var stored model.RunOutput
	require.NoError(t, json.Unmarshal(rec.Output, &stored))
	assert.Equal(t, res.OptimizeOutput.PerConnectorKW, stored.OptimizeOutput.PerConnectorKW)
	require.Len(t, stored.DispatchResults, 2)
	assert.Equal(t, model.StatusAccepted, stored.DispatchResults[1].Status)

	require.Len(t, sink.runs, 1)
	assert.Equal(t, res.RunID, sink.runs[0].StoredID)
	assert.Equal(t, disp.lastReq.RunID, sink.runs[0].RunID)

	select {
	case ev := <-sub:
		re, ok := ev.(events.RunEvent)
		require.True(t, ok)
		assert.NoError(t, re.Err)
		assert.Equal(t, 2, re.Counts[model.StatusAccepted])
	case <-time.After(time.Second):
		t.Fatal("missing run event")
	}
}

func TestRunAndDispatchPersistFailureIsFatal(t *testing.T) {
	mon := &captureMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})
	sink := &recordingSink{}
	s := newService(&fakeDispatcher{status: model.StatusNotConnected}, failingStore{}, sink)

	_, err := s.RunAndDispatch(context.Background(), model.OptimizationRequest{SiteMaxKW: 10, ConnectorMaxKW: []float64{5}})
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
	require.Error(t, mon.err)
	assert.Equal(t, "persist", mon.tags["stage"])
	assert.Equal(t, "charger-001", mon.tags["charger_id"])
	assert.Empty(t, sink.runs)
}

func TestRunAndDispatchValidatesBeforeDispatch(t *testing.T) {
	disp := &fakeDispatcher{}
	s := newService(disp, runs.NewMemoryStore(), nil)
	_, err := s.RunAndDispatch(context.Background(), model.OptimizationRequest{
		SiteMaxKW: 10, ConnectorMaxKW: []float64{5}, ChargerID: "bad id!",
	})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	assert.Empty(t, disp.lastReq.ChargerID)
}

func TestEncodeProfile(t *testing.T) {
	s := newService(&fakeDispatcher{}, runs.NewMemoryStore(), nil)
	msg, err := s.EncodeProfile(ProfileRequest{ConnectorID: intPtr(2), PerStepKW: []float64{7.4, 3.68}, StepSeconds: intPtr(60)})
	require.NoError(t, err)
	assert.Equal(t, 2, msg.ConnectorID)
	assert.Equal(t, []ocpp.ChargingSchedulePeriod{{StartPeriod: 0, Limit: 7400}, {StartPeriod: 60, Limit: 3680}},
		msg.CSChargingProfiles.ChargingSchedule.ChargingSchedulePeriod)

	_, err = s.EncodeProfile(ProfileRequest{PerStepKW: []float64{1}})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	_, err = s.EncodeProfile(ProfileRequest{ConnectorID: intPtr(1)})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	_, err = s.EncodeProfile(ProfileRequest{ConnectorID: intPtr(1), PerStepKW: []float64{1}, StepSeconds: intPtr(0)})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestDispatchProfileValidates(t *testing.T) {
	disp := &fakeDispatcher{status: model.StatusAccepted}
	s := newService(disp, runs.NewMemoryStore(), nil)
	msg := ocpp.BuildProfile(1, []float64{10}, 900, ocpp.DefaultProfileOptions())

	out, err := s.DispatchProfile(context.Background(), DispatchRequest{ChargerID: "cp-1", SetChargingProfile: &msg})
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, out.Status)
	assert.Equal(t, "cp-1", disp.charger)

	_, err = s.DispatchProfile(context.Background(), DispatchRequest{ChargerID: "cp-1"})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	empty := ocpp.SetChargingProfile{ConnectorID: 1}
	_, err = s.DispatchProfile(context.Background(), DispatchRequest{ChargerID: "cp-1", SetChargingProfile: &empty})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestSaveAndGetRun(t *testing.T) {
	s := newService(&fakeDispatcher{}, runs.NewMemoryStore(), nil)
	saved, err := s.SaveRun(context.Background(), json.RawMessage(`{"x":1}`), json.RawMessage(`{"y":2}`))
	require.NoError(t, err)
	rec, err := s.GetRun(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(rec.Input))

	_, err = s.SaveRun(context.Background(), json.RawMessage(`null`), json.RawMessage(`{"y":2}`))
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	_, err = s.GetRun(context.Background(), 77)
	assert.ErrorIs(t, err, runs.ErrNotFound)
}
