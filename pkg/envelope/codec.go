package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// MessageType tells the transport how to frame encoded envelopes.
type MessageType uint8

const (
	// MessageText is a UTF-8 text frame.
	MessageText MessageType = iota
	// MessageBinary is a binary frame.
	MessageBinary
)

// Codec converts envelopes to and from their wire representation.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Name returns the codec name used in configuration and logs.
	Name() string

	// MessageType returns the frame type the transport should use.
	MessageType() MessageType

	// Encode serializes an envelope.
	Encode(env Envelope) ([]byte, error)

	// Decode parses a raw message. Malformed input yields a *DecodeError.
	Decode(data []byte) (Envelope, error)

	// MarshalPayload encodes a payload value.
	MarshalPayload(v any) ([]byte, error)

	// UnmarshalPayload decodes a payload produced by this codec.
	UnmarshalPayload(data []byte, v any) error
}

// Available codecs.
var (
	JSON Codec = jsonCodec{}
	CBOR Codec = cborCodec{}
)

// ByName returns the codec registered under name ("json" or "cbor").
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSON, nil
	case "cbor":
		return CBOR, nil
	default:
		return nil, fmt.Errorf("unknown codec: %s (use: json, cbor)", name)
	}
}

// jsonWire is the JSON wire form of an envelope.
type jsonWire struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type jsonCodec struct{}

func (jsonCodec) Name() string             { return "json" }
func (jsonCodec) MessageType() MessageType { return MessageText }

func (jsonCodec) Encode(env Envelope) ([]byte, error) {
	if env.Kind == "" {
		return nil, ErrMissingKind
	}
	return json.Marshal(jsonWire{Kind: env.Kind, Payload: env.Payload})
}

func (c jsonCodec) Decode(data []byte) (Envelope, error) {
	var w jsonWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, &DecodeError{Codec: c.Name(), Size: len(data), Err: err}
	}
	if w.Kind == "" {
		return Envelope{}, &DecodeError{Codec: c.Name(), Size: len(data), Err: ErrMissingKind}
	}
	env := Envelope{Kind: w.Kind, codec: c}
	if len(w.Payload) > 0 && !bytes.Equal(w.Payload, []byte("null")) {
		env.Payload = []byte(w.Payload)
	}
	return env, nil
}

func (jsonCodec) MarshalPayload(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) UnmarshalPayload(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// cborWire is the CBOR wire form of an envelope.
type cborWire struct {
	Kind    string          `cbor:"1,keyasint"`
	Payload cbor.RawMessage `cbor:"2,keyasint,omitempty"`
}

// encMode is the CBOR encoder mode for envelopes.
// Configured for deterministic encoding.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for envelopes.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Lenient for forward compatibility
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

type cborCodec struct{}

func (cborCodec) Name() string             { return "cbor" }
func (cborCodec) MessageType() MessageType { return MessageBinary }

func (cborCodec) Encode(env Envelope) ([]byte, error) {
	if env.Kind == "" {
		return nil, ErrMissingKind
	}
	return encMode.Marshal(cborWire{Kind: env.Kind, Payload: env.Payload})
}

func (c cborCodec) Decode(data []byte) (Envelope, error) {
	var w cborWire
	if err := decMode.Unmarshal(data, &w); err != nil {
		return Envelope{}, &DecodeError{Codec: c.Name(), Size: len(data), Err: err}
	}
	if w.Kind == "" {
		return Envelope{}, &DecodeError{Codec: c.Name(), Size: len(data), Err: ErrMissingKind}
	}
	env := Envelope{Kind: w.Kind, codec: c}
	// 0xf6 is CBOR null
	if len(w.Payload) > 0 && !(len(w.Payload) == 1 && w.Payload[0] == 0xf6) {
		env.Payload = []byte(w.Payload)
	}
	return env, nil
}

func (cborCodec) MarshalPayload(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func (cborCodec) UnmarshalPayload(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
