// Package heartbeat detects silently dead connections.
//
// A connection can stay "open" at the socket level while the remote peer no
// longer answers. The Monitor sends a heartbeat envelope every interval and
// expects a heartbeat_ack. When the oldest unacknowledged ping is older
// than the timeout, the connection is presumed dead and the owner is told
// once through the OnDead callback.
//
// # Timing
//
// With interval 2s and timeout 5s, a peer that stops answering after the
// last ack is detected 7s later, after three unanswered pings:
//
//	t=2s ping  (first unanswered)
//	t=4s ping
//	t=6s ping
//	t=7s dead
//
// # Pause / Resume
//
// Pause suspends both timers without forgetting when the last ack arrived.
// Resume sends a ping immediately instead of waiting a full interval, so
// staleness after a long pause is detected quickly.
package heartbeat
