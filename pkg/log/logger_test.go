package log

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

type captureLogger struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureLogger) Log(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}
	c := &captureLogger{}
	if OrNoop(c) != Logger(c) {
		t.Error("OrNoop should return a non-nil logger unchanged")
	}
	NoopLogger{}.Log(Event{})
}

func TestMultiLoggerFansOut(t *testing.T) {
	a, b := &captureLogger{}, &captureLogger{}
	m := NewMultiLogger(a, nil, b)
	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}

	m.Log(Event{ConnectionID: "x"})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("events: a=%d b=%d", len(a.events), len(b.events))
	}

	NewMultiLogger().Log(Event{})
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a := NewSlogAdapter(logger)

	a.Log(Event{
		ConnectionID: "c1",
		Direction:    DirectionOut,
		Layer:        LayerEnvelope,
		Category:     CategoryMessage,
		Endpoint:     "ws://h/e",
		Envelope:     &EnvelopeEvent{Kind: "chat", Size: 12, Codec: "json"},
	})
	a.Log(Event{
		ConnectionID: "c1",
		Layer:        LayerConnection,
		Category:     CategoryState,
		Attempt:      2,
		StateChange:  &StateChangeEvent{OldState: "OPEN", NewState: "RECONNECTING", Reason: "closed"},
	})
	a.Log(Event{Category: CategoryHeartbeat, Heartbeat: &HeartbeatEvent{Type: HeartbeatAck}})
	a.Log(Event{Category: CategoryError, Error: &ErrorEventData{Layer: LayerTransport, Message: "reset", Context: "read"}})

	out := buf.String()
	for _, want := range []string{
		"msg=protocol", "conn_id=c1", "direction=OUT", "kind=chat", "size=12", "codec=json", "endpoint=ws://h/e",
		"new_state=RECONNECTING", "reason=closed", "attempt=2",
		"heartbeat=ACK",
		"error_layer=TRANSPORT", "error_msg=reset", "error_context=read",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSlogAdapterBelowDebugIsSilent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	NewSlogAdapter(logger).Log(Event{ConnectionID: "c1"})
	if buf.Len() != 0 {
		t.Errorf("unexpected output: %s", buf.String())
	}
}
