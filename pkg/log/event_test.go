package log

import (
	"testing"
	"time"
)

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{DirectionLocal.String(), "LOCAL"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerTransport.String(), "TRANSPORT"},
		{LayerEnvelope.String(), "ENVELOPE"},
		{LayerConnection.String(), "CONNECTION"},
		{Layer(9).String(), "UNKNOWN"},
		{CategoryMessage.String(), "MESSAGE"},
		{CategoryHeartbeat.String(), "HEARTBEAT"},
		{CategoryState.String(), "STATE"},
		{CategoryError.String(), "ERROR"},
		{Category(9).String(), "UNKNOWN"},
		{HeartbeatPing.String(), "PING"},
		{HeartbeatAck.String(), "ACK"},
		{HeartbeatTimeout.String(), "TIMEOUT"},
		{HeartbeatPaused.String(), "PAUSED"},
		{HeartbeatResumed.String(), "RESUMED"},
		{HeartbeatType(9).String(), "UNKNOWN"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestParseEnums(t *testing.T) {
	if d, ok := ParseDirection("OUT"); !ok || d != DirectionOut {
		t.Errorf("ParseDirection(OUT) = %v, %v", d, ok)
	}
	if _, ok := ParseDirection("SIDEWAYS"); ok {
		t.Error("ParseDirection accepted an unknown name")
	}
	if l, ok := ParseLayer("ENVELOPE"); !ok || l != LayerEnvelope {
		t.Errorf("ParseLayer(ENVELOPE) = %v, %v", l, ok)
	}
	if c, ok := ParseCategory("HEARTBEAT"); !ok || c != CategoryHeartbeat {
		t.Errorf("ParseCategory(HEARTBEAT) = %v, %v", c, ok)
	}
	if _, ok := ParseCategory("heartbeat"); ok {
		t.Error("ParseCategory is case sensitive")
	}
}

func TestNewEnvelopeEventTruncates(t *testing.T) {
	big := make([]byte, MaxPayloadCapture+10)
	ev := NewEnvelopeEvent("chat", "json", len(big)+20, big)
	if !ev.Truncated {
		t.Error("expected Truncated")
	}
	if len(ev.Payload) != MaxPayloadCapture {
		t.Errorf("payload len = %d, want %d", len(ev.Payload), MaxPayloadCapture)
	}

	small := []byte(`{"a":1}`)
	ev = NewEnvelopeEvent("chat", "json", 30, small)
	if ev.Truncated {
		t.Error("small payload marked truncated")
	}
	small[0] = 'X'
	if ev.Payload[0] != '{' {
		t.Error("payload was not copied")
	}

	ev = NewEnvelopeEvent("heartbeat", "json", 19, nil)
	if ev.Payload != nil {
		t.Error("empty payload should stay nil")
	}
}

func TestEventRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	events := []Event{
		{
			Timestamp:    ts,
			ConnectionID: "c1",
			Direction:    DirectionOut,
			Layer:        LayerEnvelope,
			Category:     CategoryMessage,
			Endpoint:     "ws://localhost:8080/events",
			Envelope:     NewEnvelopeEvent("chat", "json", 40, []byte(`"hi"`)),
		},
		{
			Timestamp:    ts,
			ConnectionID: "c1",
			Direction:    DirectionLocal,
			Layer:        LayerConnection,
			Category:     CategoryState,
			Attempt:      3,
			StateChange:  &StateChangeEvent{OldState: "OPEN", NewState: "RECONNECTING", Reason: "heartbeat timeout"},
		},
		{
			Timestamp:    ts,
			ConnectionID: "c1",
			Direction:    DirectionLocal,
			Layer:        LayerConnection,
			Category:     CategoryHeartbeat,
			Heartbeat:    &HeartbeatEvent{Type: HeartbeatTimeout, Delay: 4 * time.Second},
		},
		{
			Timestamp:    ts,
			ConnectionID: "c1",
			Direction:    DirectionIn,
			Layer:        LayerEnvelope,
			Category:     CategoryError,
			Error:        &ErrorEventData{Layer: LayerEnvelope, Message: "bad json", Context: "decode"},
		},
	}

	for _, want := range events {
		data, err := EncodeEvent(want)
		if err != nil {
			t.Fatalf("EncodeEvent: %v", err)
		}
		got, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("DecodeEvent: %v", err)
		}
		if !got.Timestamp.Equal(want.Timestamp) {
			t.Errorf("Timestamp: got %v, want %v", got.Timestamp, want.Timestamp)
		}
		if got.Category != want.Category || got.Attempt != want.Attempt || got.Endpoint != want.Endpoint {
			t.Errorf("header mismatch: got %+v", got)
		}
		switch {
		case want.Envelope != nil:
			if got.Envelope == nil || got.Envelope.Kind != "chat" || string(got.Envelope.Payload) != `"hi"` {
				t.Errorf("Envelope: got %+v", got.Envelope)
			}
		case want.StateChange != nil:
			if got.StateChange == nil || *got.StateChange != *want.StateChange {
				t.Errorf("StateChange: got %+v", got.StateChange)
			}
		case want.Heartbeat != nil:
			if got.Heartbeat == nil || *got.Heartbeat != *want.Heartbeat {
				t.Errorf("Heartbeat: got %+v", got.Heartbeat)
			}
		case want.Error != nil:
			if got.Error == nil || *got.Error != *want.Error {
				t.Errorf("Error: got %+v", got.Error)
			}
		}
	}
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error for malformed CBOR")
	}
}
