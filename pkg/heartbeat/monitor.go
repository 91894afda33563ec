package heartbeat

import (
	"sync"
	"time"

	"github.com/mash-protocol/eventlink-go/pkg/schedule"
)

// Heartbeat defaults.
const (
	// DefaultInterval is the default time between pings.
	DefaultInterval = 30 * time.Second

	// DefaultTimeout is the default time an unanswered ping may stay outstanding.
	DefaultTimeout = 10 * time.Second
)

// Config configures a Monitor.
type Config struct {
	// Interval is the time between pings.
	Interval time.Duration

	// Timeout is how long the oldest unanswered ping may stay outstanding.
	Timeout time.Duration
}

// DefaultConfig returns the default heartbeat configuration.
func DefaultConfig() Config {
	return Config{
		Interval: DefaultInterval,
		Timeout:  DefaultTimeout,
	}
}

// DetectionDelay returns the worst-case time from the last ack to OnDead.
func (c Config) DetectionDelay() time.Duration {
	return c.Interval + c.Timeout
}

// Stats is a snapshot of the monitor state.
type Stats struct {
	LastPingSentAt time.Time
	LastAckAt       time.Time
	PingsSent      uint64
	AcksReceived    uint64
	Outstanding     bool
	Paused          bool
}

// Monitor sends periodic pings and reports a dead peer.
// A Monitor is single-use: once stopped or dead it never restarts.
type Monitor struct {
	config Config
	sched  schedule.Scheduler

	// Callbacks
	sendPing func() error
	onDead    func()

	mu sync.Mutex

	started bool
	stopped bool
	paused  bool

	pingTimer   schedule.Timer
	timeoutTimer schedule.Timer

	lastPingSentAt time.Time
	lastAckAt       time.Time
	firstUnackedAt  time.Time
	outstanding     bool

	pingsSent   uint64
	acksReceived uint64
}

// NewMonitor creates a monitor. sendPing transmits one heartbeat envelope;
// onDead is called at most once, without any monitor lock held.
func NewMonitor(config Config, sched schedule.Scheduler, sendPing func() error, onDead func()) *Monitor {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	return &Monitor{
		config:    config,
		sched:     sched,
		sendPing: sendPing,
		onDead:    onDead,
	}
}

// Start arms the ping timer. The first ping goes out after one interval.
// The monitor starts suspended if paused is true or Pause was called
// before Start; it then waits for Resume.
func (m *Monitor) Start(paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started || m.stopped {
		return
	}
	m.started = true
	if paused {
		m.paused = true
	}
	if !m.paused {
		m.armPingLocked()
	}
}

// Stop destroys the monitor. No callback runs after Stop returns.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	m.cancelTimersLocked()
}

// Pause suspends pinging. LastAckAt is preserved.
func (m *Monitor) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped || m.paused {
		return
	}
	m.paused = true
	m.cancelTimersLocked()
}

// Resume restarts pinging with an immediate ping. Before Start it only
// clears the pause so Start arms the ping timer normally.
func (m *Monitor) Resume() {
	m.mu.Lock()
	if m.stopped || !m.paused {
		m.mu.Unlock()
		return
	}
	m.paused = false
	if !m.started {
		m.mu.Unlock()
		return
	}
	// Time spent paused does not count against the peer.
	m.outstanding = false
	m.mu.Unlock()

	m.ping()
}

// Ack records a heartbeat acknowledgment from the peer.
func (m *Monitor) Ack() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	m.lastAckAt = m.sched.Now()
	m.acksReceived++
	m.outstanding = false
	if m.timeoutTimer != nil {
		m.timeoutTimer.Stop()
		m.timeoutTimer = nil
	}
}

// Stats returns a snapshot of the monitor state.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		LastPingSentAt: m.lastPingSentAt,
		LastAckAt:       m.lastAckAt,
		PingsSent:      m.pingsSent,
		AcksReceived:    m.acksReceived,
		Outstanding:     m.outstanding,
		Paused:          m.paused,
	}
}

// ping sends one heartbeat and re-arms the timers.
func (m *Monitor) ping() {
	m.mu.Lock()
	if m.stopped || m.paused {
		m.mu.Unlock()
		return
	}

	now := m.sched.Now()
	m.lastPingSentAt = now
	m.pingsSent++
	if !m.outstanding {
		m.outstanding = true
		m.firstUnackedAt = now
		if m.timeoutTimer != nil {
			m.timeoutTimer.Stop()
		}
		m.timeoutTimer = m.sched.AfterFunc(m.config.Timeout, m.checkTimeout)
	}
	m.armPingLocked()
	m.mu.Unlock()

	// A failed send leaves the ping outstanding; the timeout decides.
	_ = m.sendPing()
}

// checkTimeout fires Timeout after the first unanswered ping.
func (m *Monitor) checkTimeout() {
	m.mu.Lock()
	if m.stopped || m.paused || !m.outstanding {
		m.mu.Unlock()
		return
	}
	if m.sched.Now().Sub(m.firstUnackedAt) < m.config.Timeout {
		m.mu.Unlock()
		return
	}

	m.stopped = true
	m.cancelTimersLocked()
	onDead := m.onDead
	m.mu.Unlock()

	if onDead != nil {
		onDead()
	}
}

func (m *Monitor) armPingLocked() {
	if m.pingTimer != nil {
		m.pingTimer.Stop()
	}
	m.pingTimer = m.sched.AfterFunc(m.config.Interval, m.ping)
}

func (m *Monitor) cancelTimersLocked() {
	if m.pingTimer != nil {
		m.pingTimer.Stop()
		m.pingTimer = nil
	}
	if m.timeoutTimer != nil {
		m.timeoutTimer.Stop()
		m.timeoutTimer = nil
	}
}
