package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives connection health observations.
// Implementations must be safe for concurrent use.
type Recorder interface {
	StateChanged(from, to string)
	ReconnectScheduled(attempt uint, delay time.Duration)
	HeartbeatTimeout()
	DecodeError()
	SubscriberError(topic string)
	EnvelopeSent(kind string)
	EnvelopeReceived()
	SendDropped()
}

// Noop discards all observations.
type Noop struct{}

func (Noop) StateChanged(string, string)            {}
func (Noop) ReconnectScheduled(uint, time.Duration) {}
func (Noop) HeartbeatTimeout()                      {}
func (Noop) DecodeError()                           {}
func (Noop) SubscriberError(string)                 {}
func (Noop) EnvelopeSent(string)                    {}
func (Noop) EnvelopeReceived()                      {}
func (Noop) SendDropped()                           {}

// States lists every connection state name, used to zero the state gauge.
var States = []string{"IDLE", "CONNECTING", "OPEN", "CLOSING", "RECONNECTING", "FAILED"}

// Prometheus records observations as Prometheus metrics.
type Prometheus struct {
	state             *prometheus.GaugeVec
	transitions       *prometheus.CounterVec
	reconnects        prometheus.Counter
	reconnectDelay    prometheus.Histogram
	heartbeatTimeouts prometheus.Counter
	decodeErrors      prometheus.Counter
	subscriberErrors  *prometheus.CounterVec
	envelopesSent     *prometheus.CounterVec
	envelopesReceived prometheus.Counter
	sendsDropped      prometheus.Counter
}

// NewPrometheus registers the eventlink collectors on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	p := &Prometheus{
		state: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eventlink_connection_state",
				Help: "Current connection state (1 for the active state, 0 otherwise)",
			},
			[]string{"state"},
		),
		transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventlink_state_transitions_total",
				Help: "Connection state transitions by target state",
			},
			[]string{"to"},
		),
		reconnects: f.NewCounter(
			prometheus.CounterOpts{
				Name: "eventlink_reconnects_scheduled_total",
				Help: "Reconnect attempts scheduled",
			},
		),
		reconnectDelay: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eventlink_reconnect_delay_seconds",
				Help:    "Backoff delay before each scheduled reconnect",
				Buckets: []float64{.1, .5, 1, 2, 4, 8, 16, 32, 64},
			},
		),
		heartbeatTimeouts: f.NewCounter(
			prometheus.CounterOpts{
				Name: "eventlink_heartbeat_timeouts_total",
				Help: "Connections presumed dead after unanswered heartbeats",
			},
		),
		decodeErrors: f.NewCounter(
			prometheus.CounterOpts{
				Name: "eventlink_decode_errors_total",
				Help: "Inbound messages dropped because they could not be decoded",
			},
		),
		subscriberErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventlink_subscriber_errors_total",
				Help: "Subscriber handler failures by topic",
			},
			[]string{"topic"},
		),
		envelopesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventlink_envelopes_sent_total",
				Help: "Envelopes written to the transport by kind class",
			},
			[]string{"class"},
		),
		envelopesReceived: f.NewCounter(
			prometheus.CounterOpts{
				Name: "eventlink_envelopes_received_total",
				Help: "Envelopes decoded from the transport",
			},
		),
		sendsDropped: f.NewCounter(
			prometheus.CounterOpts{
				Name: "eventlink_sends_dropped_total",
				Help: "Outbound envelopes dropped because the connection was not open",
			},
		),
	}

	for _, s := range States {
		p.state.WithLabelValues(s).Set(0)
	}
	p.state.WithLabelValues("IDLE").Set(1)
	return p
}

// StateChanged implements Recorder.
func (p *Prometheus) StateChanged(from, to string) {
	p.state.WithLabelValues(from).Set(0)
	p.state.WithLabelValues(to).Set(1)
	p.transitions.WithLabelValues(to).Inc()
}

// ReconnectScheduled implements Recorder.
func (p *Prometheus) ReconnectScheduled(_ uint, delay time.Duration) {
	p.reconnects.Inc()
	p.reconnectDelay.Observe(delay.Seconds())
}

// HeartbeatTimeout implements Recorder.
func (p *Prometheus) HeartbeatTimeout() { p.heartbeatTimeouts.Inc() }

// DecodeError implements Recorder.
func (p *Prometheus) DecodeError() { p.decodeErrors.Inc() }

// SubscriberError implements Recorder.
// Only reserved topics keep their name; application topics share one label
// value to bound cardinality.
func (p *Prometheus) SubscriberError(topic string) {
	p.subscriberErrors.WithLabelValues(topicLabel(topic)).Inc()
}

// EnvelopeSent implements Recorder.
func (p *Prometheus) EnvelopeSent(kind string) {
	p.envelopesSent.WithLabelValues(kindClass(kind)).Inc()
}

// EnvelopeReceived implements Recorder.
func (p *Prometheus) EnvelopeReceived() { p.envelopesReceived.Inc() }

// SendDropped implements Recorder.
func (p *Prometheus) SendDropped() { p.sendsDropped.Inc() }

func topicLabel(topic string) string {
	switch topic {
	case "connection", "error":
		return topic
	default:
		return "application"
	}
}

func kindClass(kind string) string {
	switch kind {
	case "heartbeat", "auth":
		return kind
	default:
		return "application"
	}
}

// Compile-time interface satisfaction checks.
var (
	_ Recorder = Noop{}
	_ Recorder = (*Prometheus)(nil)
)
