// Package connection maintains one logical, self-healing connection to an
// event server.
//
// The Manager is the sole owner of the connection state and the transport
// handle. It wires together the transport, the envelope codec, the
// heartbeat monitor and the router:
//
//	transport ──> Manager ──> codec ──> router ──> subscribers
//	                 │
//	                 └──> heartbeat monitor (ping / ack)
//
// # State Machine
//
//	Idle ──Open──> Connecting ──open──> Open
//	Connecting/Open ──lost──> Reconnecting ──timer──> Connecting
//	Connecting/Open ──lost, budget spent──> Failed
//	any ──Close──> Closing ──> Idle
//	Failed ──Open──> Connecting
//
// Only StateOpen permits sends. Transport callbacks and timers are tagged
// with the connection attempt that created them; callbacks from a
// superseded attempt are ignored, and at most one reconnect timer exists.
//
// # Reconnection Strategy
//
// After an unintentional loss the manager waits BackoffPolicy.Delay(n)
// before attempt n:
//
//	delay(n) = min(base * 2^(n-1), max)
//
// With the defaults (1s base, 30s max, 5 attempts) the delays are 1s, 2s,
// 4s, 8s and 16s; the sixth consecutive failure moves the manager to
// StateFailed and publishes {status: "failed"} on the connection topic.
//
// The attempt counter resets on a successful open (ResetOnOpen), or only
// once the server answers a heartbeat (ResetOnHeartbeatAck).
package connection
