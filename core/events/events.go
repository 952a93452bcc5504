package events

import (
	"time"

	"github.com/yaswanthhh/ev-charge-optimizer/core/model"
)

// Event is implemented by every event published on the bus.
type Event interface {
	Kind() string
}

// OutcomeEvent is published for each connector once its dispatch settled.
type OutcomeEvent struct {
	RunID   string
	Outcome model.DispatchOutcome
}

func (OutcomeEvent) Kind() string { return "outcome" }

// RunEvent is published when a run completes, successfully or not.
type RunEvent struct {
	RunID     string
	StoredID  int64
	ChargerID string
	Counts    map[model.DispatchStatus]int
	Duration  time.Duration
	Err       error
}

func (RunEvent) Kind() string { return "run" }

// StationEvent is published when a station connection changes.
// Transport is "ws" or "mqtt".
type StationEvent struct {
	StationID string
	Transport string
	Connected bool
	Time      time.Time
}

func (StationEvent) Kind() string { return "station" }
