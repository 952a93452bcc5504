package ocpp

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// TypeSetChargingProfile tags outbound profile commands.
	TypeSetChargingProfile = "SetChargingProfile"
	// TypeAck tags station acknowledgments.
	TypeAck = "Ack"
)

// Frame is the envelope of every message exchanged with a station.
type Frame struct {
	Type      string          `json:"type"`
	MessageID string          `json:"messageId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EncodeCommand wraps a profile in a SetChargingProfile frame.
func EncodeCommand(msg SetChargingProfile, messageID string) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	return json.Marshal(Frame{Type: TypeSetChargingProfile, MessageID: messageID, Payload: payload})
}

// InboundKind classifies a frame received from a station.
type InboundKind int

const (
	InboundOther InboundKind = iota
	InboundAck
)

func (k InboundKind) String() string {
	switch k {
	case InboundAck:
		return "ack"
	default:
		return "other"
	}
}

// Inbound is a decoded station frame. Raw keeps the frame exactly as received
// and is what gets stored as acknowledgment payload.
type Inbound struct {
	Kind      InboundKind
	Type      string
	MessageID string
	Raw       json.RawMessage
}

// IsAck reports whether the frame acknowledges a command.
func (in Inbound) IsAck() bool { return in.Kind == InboundAck }

var ErrMalformedFrame = errors.New("malformed station frame")

// DecodeInbound parses a frame received from a station. Frames that are not
// JSON objects or carry no type are rejected.
func DecodeInbound(data []byte) (Inbound, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return Inbound{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	in := Inbound{Kind: InboundOther, Type: f.Type, MessageID: f.MessageID, Raw: append(json.RawMessage(nil), data...)}
	if f.Type == TypeAck {
		in.Kind = InboundAck
	}
	return in, nil
}
