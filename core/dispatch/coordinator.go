// Package dispatch sends per-connector charging profiles to a station and
// classifies what happened to each of them.
package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yaswanthhh/ev-charge-optimizer/core/events"
	"github.com/yaswanthhh/ev-charge-optimizer/core/logger"
	"github.com/yaswanthhh/ev-charge-optimizer/core/model"
	"github.com/yaswanthhh/ev-charge-optimizer/core/ocpp"
	"github.com/yaswanthhh/ev-charge-optimizer/core/station"
	"github.com/yaswanthhh/ev-charge-optimizer/internal/eventbus"
)

// ConnLookup resolves a station identifier to its live connection.
type ConnLookup interface {
	Lookup(id string) (station.Conn, bool)
}

// AckWatcher hands out watchers collecting a station's acknowledgments.
type AckWatcher interface {
	Watch(id string) *station.Watcher
}

// Request describes one schedule to push to a station.
type Request struct {
	RunID       string
	ChargerID   string
	Schedule    model.OptimizeOutput
	Connectors  int
	StepSeconds int
}

// Coordinator fans a schedule out to the connectors of one station.
type Coordinator struct {
	conns  ConnLookup
	acks   AckWatcher
	cfg    Config
	logger logger.Logger
	bus    *eventbus.Bus[events.Event]
	mu     sync.RWMutex
}

// NewCoordinator creates a coordinator. Zero config fields take their
// defaults.
func NewCoordinator(conns ConnLookup, acks AckWatcher, cfg Config, log logger.Logger) *Coordinator {
	cfg.SetDefaults()
	return &Coordinator{conns: conns, acks: acks, cfg: cfg, logger: log}
}

// SetEventBus configures the bus receiving one OutcomeEvent per connector.
func (c *Coordinator) SetEventBus(bus *eventbus.Bus[events.Event]) {
	c.mu.Lock()
	c.bus = bus
	c.mu.Unlock()
}

// Config returns the effective configuration.
func (c *Coordinator) Config() Config { return c.cfg }

// Dispatch builds one profile per connector 1..req.Connectors and delivers
// them concurrently. It returns exactly req.Connectors outcomes ordered by
// connector id. Transport failures are reported as outcomes, never errors.
func (c *Coordinator) Dispatch(ctx context.Context, req Request) []model.DispatchOutcome {
	opts := c.cfg.ProfileOptions()
	outcomes := make([]model.DispatchOutcome, req.Connectors)
	var wg sync.WaitGroup
	for i := 0; i < req.Connectors; i++ {
		msg := ocpp.BuildProfile(i+1, req.Schedule.ConnectorRow(i), req.StepSeconds, opts)
		wg.Add(1)
		go func(i int, msg ocpp.SetChargingProfile) {
			defer wg.Done()
			outcomes[i] = c.DispatchProfile(ctx, req.RunID, req.ChargerID, msg)
		}(i, msg)
	}
	wg.Wait()
	sort.SliceStable(outcomes, func(a, b int) bool {
		return outcomes[a].ConnectorID < outcomes[b].ConnectorID
	})
	counts := model.CountByStatus(outcomes)
	c.logger.Infof("run %s: dispatched %d connectors to %s (accepted=%d no_ack=%d not_connected=%d send_failed=%d)",
		req.RunID, req.Connectors, req.ChargerID,
		counts[model.StatusAccepted], counts[model.StatusNoAckYet],
		counts[model.StatusNotConnected], counts[model.StatusSendFailed])
	return outcomes
}

// DispatchProfile delivers a single profile to chargerID and waits for the
// acknowledgment. Lookup, send and wait each complete without holding any
// coordinator lock.
func (c *Coordinator) DispatchProfile(ctx context.Context, runID, chargerID string, msg ocpp.SetChargingProfile) model.DispatchOutcome {
	inflight.Inc()
	defer inflight.Dec()

	out := model.DispatchOutcome{
		ConnectorID:        msg.ConnectorID,
		SetChargingProfile: msg,
		ChargerID:          chargerID,
	}
	conn, ok := c.conns.Lookup(chargerID)
	if !ok {
		out.Status = model.StatusNotConnected
		c.finish(runID, out)
		return out
	}

	messageID := uuid.NewString()
	frame, err := ocpp.EncodeCommand(msg, messageID)
	if err != nil {
		stationSends.WithLabelValues("encode_error").Inc()
		out.Status = model.StatusSendFailed
		out.Error = err.Error()
		c.finish(runID, out)
		return out
	}
	out.MessageID = messageID

	// The watcher exists before the write so replies to sibling connectors
	// cannot overwrite this one before it is observed. T0 is taken before
	// the write so an ack racing the send still counts.
	watcher := c.acks.Watch(chargerID)
	defer watcher.Stop()
	t0 := time.Now()
	sendCtx, cancelSend := context.WithTimeout(ctx, c.cfg.SendTimeout())
	err = conn.Send(sendCtx, frame)
	cancelSend()
	if err != nil {
		stationSends.WithLabelValues("error").Inc()
		c.logger.Warnf("run %s: send to %s connector %d failed: %v", runID, chargerID, msg.ConnectorID, err)
		out.Status = model.StatusSendFailed
		out.Error = err.Error()
		out.Latency = time.Since(t0)
		c.finish(runID, out)
		return out
	}
	stationSends.WithLabelValues("ok").Inc()

	var match func(station.AckRecord) bool
	if c.cfg.StrictCorrelation {
		match = func(rec station.AckRecord) bool { return rec.MessageID == messageID }
	}
	waitCtx, cancelWait := context.WithTimeout(ctx, c.cfg.AckTimeout())
	rec, acked := watcher.Wait(waitCtx, t0, match)
	cancelWait()
	out.Latency = time.Since(t0)
	if acked {
		out.Status = model.StatusAccepted
		out.Ack = rec.Payload
	} else {
		out.Status = model.StatusNoAckYet
	}
	ackWait.WithLabelValues(string(out.Status)).Observe(out.Latency.Seconds())
	c.finish(runID, out)
	return out
}

func (c *Coordinator) finish(runID string, out model.DispatchOutcome) {
	c.logger.Debugw("connector dispatch settled", map[string]any{
		"run_id":       runID,
		"charger_id":   out.ChargerID,
		"connector_id": out.ConnectorID,
		"status":       string(out.Status),
		"latency_ms":   out.Latency.Milliseconds(),
	})
	c.mu.RLock()
	bus := c.bus
	c.mu.RUnlock()
	if bus != nil {
		bus.Publish(events.OutcomeEvent{RunID: runID, Outcome: out})
	}
}
