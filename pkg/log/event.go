package log

import (
	"time"
)

// Event represents a protocol log event captured by the client.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies one connection attempt (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Endpoint is the server URL of the connection.
	Endpoint string `cbor:"6,keyasint,omitempty"`

	// Attempt is the reconnect attempt counter at the time of the event.
	Attempt uint `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Envelope    *EnvelopeEvent    `cbor:"10,keyasint,omitempty"` // Application envelopes
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"` // Connection state
	Heartbeat   *HeartbeatEvent   `cbor:"12,keyasint,omitempty"` // Ping/ack
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
	// DirectionLocal indicates an event that never crossed the wire.
	DirectionLocal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionLocal:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// ParseDirection parses a direction name as printed by String.
func ParseDirection(s string) (Direction, bool) {
	for _, d := range []Direction{DirectionIn, DirectionOut, DirectionLocal} {
		if d.String() == s {
			return d, true
		}
	}
	return 0, false
}

// Layer indicates which part of the client captured the event.
type Layer uint8

const (
	// LayerTransport is the socket layer (raw messages, dial/close).
	LayerTransport Layer = 0
	// LayerEnvelope is the codec layer (decoded envelopes).
	LayerEnvelope Layer = 1
	// LayerConnection is the connection manager (state, heartbeat).
	LayerConnection Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerEnvelope:
		return "ENVELOPE"
	case LayerConnection:
		return "CONNECTION"
	default:
		return "UNKNOWN"
	}
}

// ParseLayer parses a layer name as printed by String.
func ParseLayer(s string) (Layer, bool) {
	for _, l := range []Layer{LayerTransport, LayerEnvelope, LayerConnection} {
		if l.String() == s {
			return l, true
		}
	}
	return 0, false
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates an application envelope.
	CategoryMessage Category = 0
	// CategoryHeartbeat indicates a heartbeat ping or ack.
	CategoryHeartbeat Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryHeartbeat:
		return "HEARTBEAT"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory parses a category name as printed by String.
func ParseCategory(s string) (Category, bool) {
	for _, c := range []Category{CategoryMessage, CategoryHeartbeat, CategoryState, CategoryError} {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// EnvelopeEvent captures one envelope crossing the transport.
type EnvelopeEvent struct {
	// Kind is the envelope kind (routing topic).
	Kind string `cbor:"1,keyasint"`

	// Codec names the codec that produced the bytes.
	Codec string `cbor:"2,keyasint,omitempty"`

	// Size is the encoded message size in bytes.
	Size int `cbor:"3,keyasint"`

	// Payload is the raw encoded payload (may be truncated for large payloads).
	Payload []byte `cbor:"4,keyasint,omitempty"`

	// Truncated indicates if Payload was truncated.
	Truncated bool `cbor:"5,keyasint,omitempty"`
}

// MaxPayloadCapture is the largest payload copied into an EnvelopeEvent.
const MaxPayloadCapture = 4096

// NewEnvelopeEvent builds an EnvelopeEvent, truncating the payload copy to
// MaxPayloadCapture bytes.
func NewEnvelopeEvent(kind, codec string, size int, payload []byte) *EnvelopeEvent {
	ev := &EnvelopeEvent{Kind: kind, Codec: codec, Size: size}
	if len(payload) > MaxPayloadCapture {
		payload = payload[:MaxPayloadCapture]
		ev.Truncated = true
	}
	if len(payload) > 0 {
		ev.Payload = append([]byte(nil), payload...)
	}
	return ev
}

// StateChangeEvent captures connection lifecycle transitions.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// HeartbeatEvent captures liveness traffic.
type HeartbeatEvent struct {
	// Type of heartbeat message.
	Type HeartbeatType `cbor:"1,keyasint"`

	// Delay is the time until the next scheduled action, when one applies
	// (the backoff delay on timeout). Stored as nanoseconds.
	Delay time.Duration `cbor:"2,keyasint,omitempty"`
}

// HeartbeatType indicates the kind of liveness event.
type HeartbeatType uint8

const (
	// HeartbeatPing indicates an outbound ping.
	HeartbeatPing HeartbeatType = 0
	// HeartbeatAck indicates an inbound acknowledgment.
	HeartbeatAck HeartbeatType = 1
	// HeartbeatTimeout indicates the peer was presumed dead.
	HeartbeatTimeout HeartbeatType = 2
	// HeartbeatPaused indicates pinging was suspended.
	HeartbeatPaused HeartbeatType = 3
	// HeartbeatResumed indicates pinging was resumed.
	HeartbeatResumed HeartbeatType = 4
)

// String returns the heartbeat type name.
func (h HeartbeatType) String() string {
	switch h {
	case HeartbeatPing:
		return "PING"
	case HeartbeatAck:
		return "ACK"
	case HeartbeatTimeout:
		return "TIMEOUT"
	case HeartbeatPaused:
		return "PAUSED"
	case HeartbeatResumed:
		return "RESUMED"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
