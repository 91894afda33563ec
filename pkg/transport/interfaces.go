package transport

import (
	"context"
	"errors"
)

var (
	// ErrNotConnected is returned by Send when no connection is open.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrInvalidURL is returned by Connect for unsupported endpoint URLs.
	ErrInvalidURL = errors.New("transport: invalid url")

	// ErrSubprotocol is reported when the server selects a subprotocol
	// that was not offered.
	ErrSubprotocol = errors.New("transport: unexpected subprotocol")
)

// Handler receives the events of one connection attempt.
// Callbacks run on a transport goroutine, one at a time.
type Handler interface {
	// OnOpen reports a completed handshake.
	OnOpen()

	// OnMessage delivers one inbound message. data is owned by the callee.
	OnMessage(data []byte)

	// OnClose reports that the peer closed the connection.
	OnClose(err error)

	// OnError reports a failed dial or a broken connection.
	OnError(err error)
}

// Transport is a duplex message channel to one server.
type Transport interface {
	// Connect starts a connection attempt to url. It returns an error only
	// when the attempt cannot start; later failures go to h. ctx bounds
	// the handshake.
	Connect(ctx context.Context, url string, h Handler) error

	// Send writes one message on the open connection.
	Send(data []byte) error

	// Close tears down the current connection, if any, without invoking
	// its Handler.
	Close() error
}

// Compile-time interface satisfaction check.
var _ Transport = (*WebSocket)(nil)
