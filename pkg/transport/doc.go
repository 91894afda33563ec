// Package transport defines the duplex message capability consumed by the
// connection manager, and a WebSocket implementation of it.
//
// A Transport carries one connection at a time. Connect starts an attempt
// and returns immediately; the outcome and all later traffic are reported
// through the Handler passed to that Connect call:
//
//	OnOpen                 handshake completed, Send is possible
//	OnMessage              one inbound message
//	OnClose                the peer closed the connection
//	OnError                dial failure or broken connection
//
// After Close (or a new Connect) the previous Handler receives no further
// callbacks.
package transport
