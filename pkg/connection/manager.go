package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mash-protocol/eventlink-go/pkg/envelope"
	"github.com/mash-protocol/eventlink-go/pkg/heartbeat"
	"github.com/mash-protocol/eventlink-go/pkg/log"
	"github.com/mash-protocol/eventlink-go/pkg/metrics"
	"github.com/mash-protocol/eventlink-go/pkg/router"
	"github.com/mash-protocol/eventlink-go/pkg/schedule"
	"github.com/mash-protocol/eventlink-go/pkg/transport"
)

// Connection errors.
var (
	ErrInvalidState     = errors.New("invalid connection state")
	ErrNotOpen          = errors.New("connection not open")
	ErrHeartbeatTimeout = errors.New("heartbeat timeout")
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
	ErrClosedByPeer     = errors.New("connection closed by peer")
	ErrNoEndpoint       = errors.New("no endpoint url")
	ErrNoTransport      = errors.New("no transport")
)

// Config configures a Manager.
type Config struct {
	// URL is the server endpoint passed to the transport.
	URL string

	// Transport carries the connection. Required.
	Transport transport.Transport

	// Codec encodes envelopes (default: envelope.JSON).
	Codec envelope.Codec

	// Router receives inbound envelopes and the reserved topics.
	// Nil creates a private router.
	Router *router.Router

	// Backoff controls reconnects. The zero value uses DefaultBackoffPolicy.
	Backoff BackoffPolicy

	// Heartbeat configures the liveness monitor of each open connection.
	Heartbeat heartbeat.Config

	// Credentials supplies the auth envelope sent after each open.
	Credentials CredentialProvider

	// Scheduler runs reconnect and heartbeat timers (default: real clock).
	Scheduler schedule.Scheduler

	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger

	// ProtocolLogger receives protocol capture events. Nil disables capture.
	ProtocolLogger log.Logger

	// Metrics records connection health. Nil disables metrics.
	Metrics metrics.Recorder
}

// Manager owns the single logical connection to the server: its state,
// the transport handle, the reconnect timer and the heartbeat monitor.
type Manager struct {
	url         string
	transport   transport.Transport
	codec       envelope.Codec
	router      *router.Router
	policy      BackoffPolicy
	hbConfig    heartbeat.Config
	credentials CredentialProvider
	sched       schedule.Scheduler
	logger      *slog.Logger
	plog        log.Logger
	metrics     metrics.Recorder

	mu sync.Mutex

	// pauseMu orders PauseHeartbeat and ResumeHeartbeat end to end, so the
	// monitor ends in the state of the last call. Never taken under mu.
	pauseMu sync.Mutex

	state   State
	attempt uint

	// gen identifies the current connection attempt. Transport callbacks
	// and timers carry the generation they were created for and are
	// ignored once it changes.
	gen    uint64
	connID string

	reconnectTimer schedule.Timer
	cancelDial     context.CancelFunc
	monitor        *heartbeat.Monitor

	// paused survives reconnects; a monitor created while paused starts
	// suspended.
	paused bool

	// ackSinceOpen tracks the first heartbeat ack for ResetOnHeartbeatAck.
	ackSinceOpen bool

	lastErr error

	onStateChange func(oldState, newState State)
}

// NewManager creates a manager in StateIdle.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.URL == "" {
		return nil, ErrNoEndpoint
	}
	if cfg.Transport == nil {
		return nil, ErrNoTransport
	}
	if cfg.Backoff == (BackoffPolicy{}) {
		cfg.Backoff = DefaultBackoffPolicy()
	}
	if err := cfg.Backoff.Validate(); err != nil {
		return nil, err
	}
	if cfg.Codec == nil {
		cfg.Codec = envelope.JSON
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop{}
	}
	if cfg.Router == nil {
		cfg.Router = router.New(router.Config{Logger: cfg.Logger, Metrics: cfg.Metrics})
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = schedule.Real()
	}

	return &Manager{
		url:         cfg.URL,
		transport:   cfg.Transport,
		codec:       cfg.Codec,
		router:      cfg.Router,
		policy:      cfg.Backoff,
		hbConfig:    cfg.Heartbeat,
		credentials: cfg.Credentials,
		sched:       cfg.Scheduler,
		logger:      cfg.Logger,
		plog:        log.OrNoop(cfg.ProtocolLogger),
		metrics:     cfg.Metrics,
		state:       StateIdle,
	}, nil
}

// effects are side effects collected under the lock and run after it is
// released, in order.
type effects []func()

func (fx *effects) add(f func()) { *fx = append(*fx, f) }

func (fx effects) run() {
	for _, f := range fx {
		f()
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempt returns the reconnect attempt counter.
func (m *Manager) Attempt() uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// LastError returns the cause of the most recent unintentional disconnect.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// ConnectionID returns the identifier of the current connection attempt.
func (m *Manager) ConnectionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connID
}

// URL returns the endpoint.
func (m *Manager) URL() string {
	return m.url
}

// Codec returns the envelope codec.
func (m *Manager) Codec() envelope.Codec {
	return m.codec
}

// Router returns the router receiving inbound envelopes.
func (m *Manager) Router() *router.Router {
	return m.router
}

// HeartbeatStats returns the stats of the current monitor. ok is false
// when no connection is open.
func (m *Manager) HeartbeatStats() (stats heartbeat.Stats, ok bool) {
	m.mu.Lock()
	mon := m.monitor
	m.mu.Unlock()
	if mon == nil {
		return heartbeat.Stats{}, false
	}
	return mon.Stats(), true
}

// OnStateChange sets a callback for state changes. The callback runs
// without the manager lock held.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// Open starts connecting. It is valid only from StateIdle or StateFailed
// and resets the attempt counter.
func (m *Manager) Open() error {
	m.mu.Lock()
	if m.state != StateIdle && m.state != StateFailed {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: open while %s", ErrInvalidState, state)
	}

	var fx effects
	m.attempt = 0
	m.lastErr = nil
	m.startAttemptLocked("open requested", &fx)
	m.mu.Unlock()

	fx.run()
	return nil
}

// Close shuts the connection down and ends in StateIdle. It cancels any
// pending reconnect and never triggers one. Close in StateIdle is a no-op.
//
// A Close that arrives while another Close is in progress returns nil at
// once and does not wait; the state may still be StateClosing. It does not
// block so that a state observer may call Close during a Close. Callers that
// need StateIdle should use OnStateChange.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state == StateIdle || m.state == StateClosing {
		m.mu.Unlock()
		return nil
	}

	var fx effects
	from := m.state
	wasOpen := from == StateOpen
	live := from == StateOpen || from == StateConnecting
	m.setStateLocked(StateClosing, "close requested", &fx)
	m.teardownLocked(&fx, false)
	m.mu.Unlock()
	fx.run()

	var err error
	if live {
		err = m.transport.Close()
	}

	fx = nil
	m.mu.Lock()
	if m.state == StateClosing {
		m.attempt = 0
		m.setStateLocked(StateIdle, "closed", &fx)
	}
	m.mu.Unlock()
	if wasOpen {
		fx.add(func() {
			m.publish(router.TopicConnection, router.ConnectionEvent{Status: router.StatusDisconnected})
		})
	}
	fx.run()

	if err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

// Send encodes and writes one envelope. It returns ErrNotOpen unless the
// connection is open. A failed write is handled as a lost connection and
// reported on the error topic rather than returned.
func (m *Manager) Send(kind string, payload any) error {
	m.mu.Lock()
	if m.state != StateOpen {
		state := m.state
		m.mu.Unlock()
		m.metrics.SendDropped()
		m.logger.Debug("send dropped", "kind", kind, "state", state.String())
		return ErrNotOpen
	}
	g := m.gen
	m.mu.Unlock()

	return m.send(g, kind, payload)
}

// PauseHeartbeat suspends liveness pinging, typically while the host
// application is in the background.
func (m *Manager) PauseHeartbeat() {
	m.pauseMu.Lock()
	defer m.pauseMu.Unlock()

	m.mu.Lock()
	if m.paused {
		m.mu.Unlock()
		return
	}
	m.paused = true
	mon, connID := m.monitor, m.connID
	m.mu.Unlock()

	if mon != nil {
		mon.Pause()
		m.logHeartbeat(connID, log.DirectionLocal, log.HeartbeatPaused)
	}
}

// ResumeHeartbeat restarts pinging with an immediate ping.
func (m *Manager) ResumeHeartbeat() {
	m.pauseMu.Lock()
	defer m.pauseMu.Unlock()

	m.mu.Lock()
	if !m.paused {
		m.mu.Unlock()
		return
	}
	m.paused = false
	mon, connID := m.monitor, m.connID
	m.mu.Unlock()

	if mon != nil {
		m.logHeartbeat(connID, log.DirectionLocal, log.HeartbeatResumed)
		mon.Resume()
	}
}

// HeartbeatPaused reports whether pinging is suspended.
func (m *Manager) HeartbeatPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// startAttemptLocked begins a new generation and dials.
func (m *Manager) startAttemptLocked(reason string, fx *effects) {
	m.gen++
	g := m.gen
	m.connID = uuid.NewString()
	m.ackSinceOpen = false

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel

	m.setStateLocked(StateConnecting, reason, fx)
	fx.add(func() { m.dial(ctx, g) })
}

func (m *Manager) dial(ctx context.Context, g uint64) {
	if err := m.transport.Connect(ctx, m.url, &connHandler{m: m, gen: g}); err != nil {
		m.fail(g, fmt.Errorf("connect: %w", err))
	}
}

// teardownLocked destroys everything tied to the current generation.
func (m *Manager) teardownLocked(fx *effects, closeTransport bool) {
	if m.monitor != nil {
		m.monitor.Stop()
		m.monitor = nil
	}
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	m.gen++

	if closeTransport {
		fx.add(func() { _ = m.transport.Close() })
	}
}

func (m *Manager) setStateLocked(to State, reason string, fx *effects) {
	from := m.state
	if from == to {
		return
	}
	m.state = to

	attempt, connID, cb := m.attempt, m.connID, m.onStateChange
	fx.add(func() {
		m.logger.Info("connection state changed",
			"from", from.String(),
			"to", to.String(),
			"attempt", attempt,
			"reason", reason)
		m.metrics.StateChanged(from.String(), to.String())
		m.plog.Log(log.Event{
			Timestamp:    m.sched.Now(),
			ConnectionID: connID,
			Direction:    log.DirectionLocal,
			Layer:        log.LayerConnection,
			Category:     log.CategoryState,
			Endpoint:     m.url,
			Attempt:      attempt,
			StateChange: &log.StateChangeEvent{
				OldState: from.String(),
				NewState: to.String(),
				Reason:   reason,
			},
		})
		if cb != nil {
			cb(from, to)
		}
	})
}

// onOpen handles a completed handshake for generation g.
func (m *Manager) onOpen(g uint64) {
	m.mu.Lock()
	if g != m.gen || m.state != StateConnecting {
		m.mu.Unlock()
		return
	}

	var fx effects
	if m.policy.Reset == ResetOnOpen {
		m.attempt = 0
	}
	m.setStateLocked(StateOpen, "transport open", &fx)

	mon := heartbeat.NewMonitor(m.hbConfig, m.sched,
		func() error { return m.send(g, envelope.KindHeartbeat, nil) },
		func() { m.fail(g, ErrHeartbeatTimeout) },
	)
	m.monitor = mon
	// Started before the lock is released so PauseHeartbeat and
	// ResumeHeartbeat never see an unstarted monitor.
	mon.Start(m.paused)
	attempt := m.attempt

	fx.add(func() { m.sendAuth(g) })
	fx.add(func() {
		m.publish(router.TopicConnection, router.ConnectionEvent{Status: router.StatusConnected, Attempt: attempt})
	})
	m.mu.Unlock()

	fx.run()
}

func (m *Manager) sendAuth(g uint64) {
	if m.credentials == nil {
		return
	}
	token, ok := m.credentials.Credential()
	if !ok {
		return
	}
	if err := m.send(g, envelope.KindAuth, token); err != nil && !errors.Is(err, ErrNotOpen) {
		m.logger.Error("failed to send auth envelope", "error", err)
	}
}

// onMessage handles one inbound message for generation g.
func (m *Manager) onMessage(g uint64, data []byte) {
	m.mu.Lock()
	if g != m.gen || m.state != StateOpen {
		m.mu.Unlock()
		return
	}
	mon, connID := m.monitor, m.connID
	m.mu.Unlock()

	env, err := m.codec.Decode(data)
	if err != nil {
		m.metrics.DecodeError()
		m.logger.Warn("dropping undecodable message", "size", len(data), "error", err)
		m.plog.Log(log.Event{
			Timestamp:    m.sched.Now(),
			ConnectionID: connID,
			Direction:    log.DirectionIn,
			Layer:        log.LayerEnvelope,
			Category:     log.CategoryError,
			Endpoint:     m.url,
			Error:        &log.ErrorEventData{Layer: log.LayerEnvelope, Message: err.Error(), Context: "decode"},
		})
		m.publish(router.TopicError, router.ErrorEvent{Source: router.SourceDecode, Message: err.Error()})
		return
	}
	m.metrics.EnvelopeReceived()

	if env.Kind == envelope.KindHeartbeatAck {
		m.logHeartbeat(connID, log.DirectionIn, log.HeartbeatAck)
		if mon != nil {
			mon.Ack()
		}
		m.mu.Lock()
		if g == m.gen && m.policy.Reset == ResetOnHeartbeatAck && !m.ackSinceOpen {
			m.ackSinceOpen = true
			m.attempt = 0
		}
		m.mu.Unlock()
		return
	}

	if router.IsReserved(env.Kind) {
		m.logger.Warn("dropping inbound envelope with reserved kind", "kind", env.Kind)
		m.plog.Log(log.Event{
			Timestamp:    m.sched.Now(),
			ConnectionID: connID,
			Direction:    log.DirectionIn,
			Layer:        log.LayerEnvelope,
			Category:     log.CategoryError,
			Endpoint:     m.url,
			Error:        &log.ErrorEventData{Layer: log.LayerEnvelope, Message: "reserved kind " + env.Kind, Context: "dispatch"},
		})
		return
	}

	m.logEnvelope(connID, log.DirectionIn, env, len(data))
	m.router.Dispatch(env)
}

// fail handles an unintentional loss of generation g.
func (m *Manager) fail(g uint64, cause error) {
	m.mu.Lock()
	if g != m.gen || (m.state != StateConnecting && m.state != StateOpen) {
		m.mu.Unlock()
		return
	}

	var fx effects
	wasOpen := m.state == StateOpen
	connID := m.connID
	m.teardownLocked(&fx, true)
	m.lastErr = cause

	fx.add(func() {
		if errors.Is(cause, ErrHeartbeatTimeout) {
			m.metrics.HeartbeatTimeout()
			m.logHeartbeat(connID, log.DirectionLocal, log.HeartbeatTimeout)
		}
		m.logger.Warn("connection lost", "url", m.url, "error", cause)
		m.plog.Log(log.Event{
			Timestamp:    m.sched.Now(),
			ConnectionID: connID,
			Direction:    log.DirectionLocal,
			Layer:        log.LayerTransport,
			Category:     log.CategoryError,
			Endpoint:     m.url,
			Error:        &log.ErrorEventData{Layer: log.LayerTransport, Message: cause.Error()},
		})
		m.publish(router.TopicError, router.ErrorEvent{Source: errorSource(cause), Message: cause.Error()})
	})

	next := m.attempt + 1
	if m.policy.ShouldRetry(next) {
		m.attempt = next
		delay := m.policy.Delay(next)
		m.setStateLocked(StateReconnecting, cause.Error(), &fx)

		// The timer is armed only after the transport close queued by
		// teardownLocked has run, so that close cannot hit the next session.
		rg := m.gen
		fx.add(func() { m.armReconnect(rg, next, delay) })
		if wasOpen {
			fx.add(func() {
				m.publish(router.TopicConnection, router.ConnectionEvent{
					Status:  router.StatusDisconnected,
					Attempt: next,
					Error:   cause.Error(),
				})
			})
		}
	} else {
		m.lastErr = fmt.Errorf("%w: %w", ErrRetriesExhausted, cause)
		m.setStateLocked(StateFailed, ErrRetriesExhausted.Error(), &fx)

		attempt, final := m.attempt, m.lastErr
		fx.add(func() {
			m.logger.Error("giving up on connection", "attempts", attempt, "error", cause)
			m.publish(router.TopicConnection, router.ConnectionEvent{
				Status:  router.StatusFailed,
				Attempt: attempt,
				Error:   final.Error(),
			})
		})
	}
	m.mu.Unlock()

	fx.run()
}

// armReconnect schedules the reconnect of generation g unless the manager
// left StateReconnecting in the meantime.
func (m *Manager) armReconnect(g uint64, attempt uint, delay time.Duration) {
	m.mu.Lock()
	if g != m.gen || m.state != StateReconnecting || m.reconnectTimer != nil {
		m.mu.Unlock()
		return
	}
	m.reconnectTimer = m.sched.AfterFunc(delay, func() { m.reconnect(g) })
	m.mu.Unlock()

	m.metrics.ReconnectScheduled(attempt, delay)
	m.logger.Info("reconnect scheduled", "attempt", attempt, "delay", delay)
}

// reconnect fires when the backoff delay of generation g elapses.
func (m *Manager) reconnect(g uint64) {
	m.mu.Lock()
	if g != m.gen || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.reconnectTimer = nil

	var fx effects
	m.startAttemptLocked(fmt.Sprintf("reconnect attempt %d", m.attempt), &fx)
	m.mu.Unlock()

	fx.run()
}

// send encodes and writes an envelope on generation g.
func (m *Manager) send(g uint64, kind string, payload any) error {
	env, err := envelope.New(m.codec, kind, payload)
	if err != nil {
		return err
	}
	data, err := m.codec.Encode(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}

	m.mu.Lock()
	if g != m.gen || m.state != StateOpen {
		m.mu.Unlock()
		m.metrics.SendDropped()
		return ErrNotOpen
	}
	connID := m.connID
	m.mu.Unlock()

	if err := m.transport.Send(data); err != nil {
		m.fail(g, fmt.Errorf("write %s: %w", kind, err))
		return nil
	}

	m.metrics.EnvelopeSent(kind)
	if kind == envelope.KindHeartbeat {
		m.logHeartbeat(connID, log.DirectionOut, log.HeartbeatPing)
	} else {
		m.logEnvelope(connID, log.DirectionOut, env, len(data))
	}
	return nil
}

func (m *Manager) publish(topic string, payload any) {
	if err := m.router.Publish(m.codec, topic, payload); err != nil {
		m.logger.Error("failed to publish local event", "topic", topic, "error", err)
	}
}

func (m *Manager) logEnvelope(connID string, dir log.Direction, env envelope.Envelope, size int) {
	m.plog.Log(log.Event{
		Timestamp:    m.sched.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerEnvelope,
		Category:     log.CategoryMessage,
		Endpoint:     m.url,
		Envelope:     log.NewEnvelopeEvent(env.Kind, m.codec.Name(), size, env.Payload),
	})
}

func (m *Manager) logHeartbeat(connID string, dir log.Direction, typ log.HeartbeatType) {
	m.plog.Log(log.Event{
		Timestamp:    m.sched.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerConnection,
		Category:     log.CategoryHeartbeat,
		Endpoint:     m.url,
		Heartbeat:    &log.HeartbeatEvent{Type: typ},
	})
}

func errorSource(err error) string {
	if errors.Is(err, ErrHeartbeatTimeout) {
		return router.SourceHeartbeat
	}
	return router.SourceTransport
}

// connHandler binds transport callbacks to one generation.
type connHandler struct {
	m   *Manager
	gen uint64
}

func (h *connHandler) OnOpen()               { h.m.onOpen(h.gen) }
func (h *connHandler) OnMessage(data []byte) { h.m.onMessage(h.gen, data) }
func (h *connHandler) OnError(err error)     { h.m.fail(h.gen, err) }

func (h *connHandler) OnClose(err error) {
	if err == nil {
		err = ErrClosedByPeer
	} else {
		err = fmt.Errorf("%w: %w", ErrClosedByPeer, err)
	}
	h.m.fail(h.gen, err)
}

// Compile-time interface satisfaction check.
var _ transport.Handler = (*connHandler)(nil)
