package router

import (
	"github.com/mash-protocol/eventlink-go/pkg/envelope"
)

// Reserved topics produced locally.
const (
	TopicConnection = "connection"
	TopicError      = "error"
)

// Connection statuses published on TopicConnection.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusFailed       = "failed"
)

// IsReserved reports whether topic is emitted only locally and must not be
// accepted from the wire.
func IsReserved(topic string) bool {
	return topic == TopicConnection || topic == TopicError
}

// ConnectionEvent is the payload of TopicConnection envelopes.
type ConnectionEvent struct {
	Status  string `json:"status" cbor:"1,keyasint"`
	Attempt uint   `json:"attempt,omitempty" cbor:"2,keyasint,omitempty"`
	Error   string `json:"error,omitempty" cbor:"3,keyasint,omitempty"`
}

// ErrorEvent is the payload of TopicError envelopes.
type ErrorEvent struct {
	// Source is "transport", "heartbeat" or "decode".
	Source  string `json:"source" cbor:"1,keyasint"`
	Message string `json:"message" cbor:"2,keyasint"`
}

// Error sources.
const (
	SourceTransport = "transport"
	SourceHeartbeat = "heartbeat"
	SourceDecode    = "decode"
)

// Publish encodes payload with codec and dispatches it on topic.
// It is used for the reserved topics; encoding failures are returned.
func (r *Router) Publish(codec envelope.Codec, topic string, payload any) error {
	env, err := envelope.New(codec, topic, payload)
	if err != nil {
		return err
	}
	r.Dispatch(env)
	return nil
}
