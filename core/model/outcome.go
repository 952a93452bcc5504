package model

import (
	"encoding/json"
	"time"

	"github.com/yaswanthhh/ev-charge-optimizer/core/ocpp"
)

// DispatchStatus is the terminal state of one connector dispatch.
type DispatchStatus string

const (
	// StatusNotConnected means the owning station had no live connection.
	StatusNotConnected DispatchStatus = "NotConnected"
	// StatusAccepted means an acknowledgment arrived before the deadline.
	StatusAccepted DispatchStatus = "Accepted"
	// StatusNoAckYet means the profile was sent but no acknowledgment arrived
	// before the deadline. The command may still be in flight.
	StatusNoAckYet DispatchStatus = "NoAckYet"
	// StatusSendFailed means the transport rejected the write.
	StatusSendFailed DispatchStatus = "SendFailed"
)

// DispatchOutcome reports what happened to the profile of one connector.
type DispatchOutcome struct {
	ConnectorID        int                     `json:"connectorId"`
	Status             DispatchStatus          `json:"status"`
	Ack                json.RawMessage         `json:"ack"`
	SetChargingProfile ocpp.SetChargingProfile `json:"setChargingProfile"`
	ChargerID          string                  `json:"chargerId"`
	MessageID          string                  `json:"messageId,omitempty"`
	Error              string                  `json:"error,omitempty"`
	Latency            time.Duration           `json:"-"`
}

// Delivered reports whether the station confirmed the profile.
func (o DispatchOutcome) Delivered() bool { return o.Status == StatusAccepted }

// CountByStatus tallies outcomes per status.
func CountByStatus(outcomes []DispatchOutcome) map[DispatchStatus]int {
	counts := make(map[DispatchStatus]int, 4)
	for _, o := range outcomes {
		counts[o.Status]++
	}
	return counts
}
