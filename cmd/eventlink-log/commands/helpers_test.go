package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mash-protocol/eventlink-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+log.FileExt)

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

// sessionEvents is a short connection: open, one envelope each way, drop.
func sessionEvents() []log.Event {
	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	conn := "5f0c2a9e-1111-2222-3333-444455556666"
	return []log.Event{
		{
			Timestamp: ts, ConnectionID: conn, Direction: log.DirectionLocal,
			Layer: log.LayerConnection, Category: log.CategoryState, Endpoint: "ws://srv/events",
			StateChange: &log.StateChangeEvent{OldState: "IDLE", NewState: "CONNECTING", Reason: "open requested"},
		},
		{
			Timestamp: ts.Add(10 * time.Millisecond), ConnectionID: conn, Direction: log.DirectionLocal,
			Layer: log.LayerConnection, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{OldState: "CONNECTING", NewState: "OPEN"},
		},
		{
			Timestamp: ts.Add(20 * time.Millisecond), ConnectionID: conn, Direction: log.DirectionOut,
			Layer: log.LayerEnvelope, Category: log.CategoryMessage,
			Envelope: log.NewEnvelopeEvent("chat.message", "json", 40, []byte(`"hello"`)),
		},
		{
			Timestamp: ts.Add(30 * time.Millisecond), ConnectionID: conn, Direction: log.DirectionIn,
			Layer: log.LayerEnvelope, Category: log.CategoryMessage,
			Envelope: log.NewEnvelopeEvent("presence.update", "json", 52, []byte(`{"user":"ana"}`)),
		},
		{
			Timestamp: ts.Add(35 * time.Second), ConnectionID: conn, Direction: log.DirectionLocal,
			Layer: log.LayerConnection, Category: log.CategoryHeartbeat,
			Heartbeat: &log.HeartbeatEvent{Type: log.HeartbeatTimeout, Delay: time.Second},
		},
		{
			Timestamp: ts.Add(35 * time.Second), ConnectionID: conn, Direction: log.DirectionLocal,
			Layer: log.LayerTransport, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerConnection, Message: "heartbeat timeout"},
		},
	}
}
