package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mash-protocol/eventlink-go/pkg/version"
)

// WebSocket defaults.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultMaxMessageSize   = 1 << 20
)

// WebSocketConfig configures a WebSocket transport.
type WebSocketConfig struct {
	// HandshakeTimeout bounds the opening handshake (default: 10s).
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each write (default: 10s).
	WriteTimeout time.Duration

	// MaxMessageSize is the largest accepted inbound message (default: 1MB).
	MaxMessageSize int64

	// Binary sends binary frames instead of text frames.
	Binary bool

	// Header is sent with the handshake request.
	Header http.Header

	// Subprotocols are offered in the handshake. Nil offers
	// version.SupportedSubprotocols(). A server selection outside this list
	// fails the attempt.
	Subprotocols []string

	// TLSConfig is used for wss:// endpoints. Nil uses Go defaults.
	TLSConfig *tls.Config

	// Logger receives connection diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
}

// WebSocket is a Transport over gorilla/websocket.
type WebSocket struct {
	config WebSocketConfig
	dialer *websocket.Dialer
	logger *slog.Logger

	mu  sync.Mutex
	cur *wsSession
}

// wsSession is one connection attempt.
type wsSession struct {
	handler Handler
	cancel  context.CancelFunc

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	// Serializes data frames; gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

// NewWebSocket creates a WebSocket transport.
func NewWebSocket(config WebSocketConfig) *WebSocket {
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Subprotocols == nil {
		config.Subprotocols = version.SupportedSubprotocols()
	}

	return &WebSocket{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
			TLSClientConfig:  config.TLSConfig,
			Subprotocols:     config.Subprotocols,
		},
		logger: config.Logger,
	}
}

// Connect implements Transport. Any previous connection is closed first.
func (w *WebSocket) Connect(ctx context.Context, rawURL string, h Handler) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}

	dialCtx, cancel := context.WithCancel(ctx)
	s := &wsSession{handler: h, cancel: cancel}

	w.mu.Lock()
	prev := w.cur
	w.cur = s
	w.mu.Unlock()

	if prev != nil {
		_ = prev.close()
	}

	go w.run(dialCtx, s, u.String())
	return nil
}

// run dials and then reads until the connection ends.
func (w *WebSocket) run(ctx context.Context, s *wsSession, endpoint string) {
	conn, resp, err := w.dialer.DialContext(ctx, endpoint, w.config.Header)
	if err != nil {
		s.cancel()
		if s.isClosed() {
			return
		}
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		w.detach(s)
		w.logger.Debug("websocket dial failed", "url", endpoint, "error", err)
		s.handler.OnError(fmt.Errorf("dial: %w", err))
		return
	}

	if sp := conn.Subprotocol(); sp != "" && !slices.Contains(w.config.Subprotocols, sp) {
		conn.Close()
		s.cancel()
		if s.isClosed() {
			return
		}
		w.detach(s)
		s.handler.OnError(fmt.Errorf("%w: %q", ErrSubprotocol, sp))
		return
	}

	if !s.attach(conn) {
		conn.Close()
		return
	}
	w.logger.Debug("websocket connected", "url", endpoint, "subprotocol", conn.Subprotocol())
	conn.SetReadLimit(w.config.MaxMessageSize)

	s.handler.OnOpen()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if s.isClosed() {
				return
			}
			w.detach(s)
			_ = s.close()

			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				s.handler.OnClose(err)
			} else {
				s.handler.OnError(fmt.Errorf("read: %w", err))
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		if s.isClosed() {
			return
		}
		s.handler.OnMessage(data)
	}
}

// Send implements Transport.
func (w *WebSocket) Send(data []byte) error {
	w.mu.Lock()
	s := w.cur
	w.mu.Unlock()
	if s == nil {
		return ErrNotConnected
	}

	conn := s.openConn()
	if conn == nil {
		return ErrNotConnected
	}

	mt := websocket.TextMessage
	if w.config.Binary {
		mt = websocket.BinaryMessage
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(mt, data)
}

// Close implements Transport.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	s := w.cur
	w.cur = nil
	w.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.close()
}

// detach forgets s if it is still the current session.
func (w *WebSocket) detach(s *wsSession) {
	w.mu.Lock()
	if w.cur == s {
		w.cur = nil
	}
	w.mu.Unlock()
}

func (s *wsSession) attach(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conn = conn
	return true
}

func (s *wsSession) openConn() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.conn
}

func (s *wsSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// close marks the session closed, aborts a pending dial and sends a close
// frame on an established connection.
func (s *wsSession) close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	s.cancel()
	if conn == nil {
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return conn.Close()
}
