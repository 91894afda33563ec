// Package envelope defines the wire envelope exchanged with the event server.
//
// Every message on the wire is an envelope carrying exactly one kind (the
// routing discriminator) and an optional payload:
//
//	{"kind": "content_update", "payload": {...}}
//
// The payload is kept in its encoded form until a subscriber asks for it,
// so unknown kinds pass through the client untouched.
//
// # Codecs
//
// Two codecs are provided:
//   - JSON: the default text format shown above
//   - CBOR: an integer-keyed binary form {1: kind, 2: payload}
//
// # Reserved Kinds
//
// The connection core consumes and produces a few kinds itself:
//   - heartbeat: outbound liveness ping, empty payload
//   - heartbeat_ack: inbound ping acknowledgment, empty payload
//   - auth: outbound credential handshake, payload is the credential string
//
// Everything else is an application topic.
package envelope
