package envelope

import (
	"errors"
	"fmt"
)

// Reserved envelope kinds handled by the connection core.
const (
	KindHeartbeat    = "heartbeat"
	KindHeartbeatAck = "heartbeat_ack"
	KindAuth         = "auth"
)

// Envelope errors.
var (
	ErrMissingKind  = errors.New("envelope has no kind")
	ErrEmptyPayload = errors.New("envelope has no payload")
)

// Envelope is the typed unit of wire communication.
type Envelope struct {
	// Kind is the routing discriminator. Never empty on a valid envelope.
	Kind string

	// Payload is the payload exactly as encoded by the codec that produced
	// the envelope. Nil when the envelope carries no payload.
	Payload []byte

	codec Codec
}

// New builds an envelope whose payload is encoded with codec.
// A nil payload produces an envelope without payload.
func New(codec Codec, kind string, payload any) (Envelope, error) {
	if kind == "" {
		return Envelope{}, ErrMissingKind
	}
	env := Envelope{Kind: kind, codec: codec}
	if payload == nil {
		return env, nil
	}
	data, err := codec.MarshalPayload(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	env.Payload = data
	return env, nil
}

// HasPayload reports whether the envelope carries a payload.
func (e Envelope) HasPayload() bool {
	return len(e.Payload) > 0
}

// Decode unmarshals the payload into v using the codec that produced the
// envelope. Envelopes built by hand without a codec are treated as JSON.
func (e Envelope) Decode(v any) error {
	if !e.HasPayload() {
		return ErrEmptyPayload
	}
	c := e.codec
	if c == nil {
		c = JSON
	}
	return c.UnmarshalPayload(e.Payload, v)
}

// String returns a short description for logs.
func (e Envelope) String() string {
	return fmt.Sprintf("%s(%d bytes)", e.Kind, len(e.Payload))
}

// DecodeError reports an inbound message that could not be parsed into an
// envelope. It is never fatal to the connection.
type DecodeError struct {
	// Codec is the name of the codec that rejected the message.
	Codec string

	// Size is the raw message size in bytes.
	Size int

	// Err is the underlying parse error.
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s envelope (%d bytes): %v", e.Codec, e.Size, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
