package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mash-protocol/eventlink-go/pkg/log"
)

func TestStatsSummary(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Total Events: 6",
		"CONNECTION:",
		"ENVELOPE:",
		"HEARTBEAT:",
		"chat.message:",
		"presence.update:",
		"Connections: 1",
		"[5f0c2a9e] 6 events, duration 35s, opened",
		"Endpoint: ws://srv/events",
		"Heartbeat Timeouts: 1",
		"Errors: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "Failures:") {
		t.Error("no failures expected")
	}
}

func TestStatsCountsFailures(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, ConnectionID: "conn-a", Attempt: 5, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{OldState: "RECONNECTING", NewState: "CONNECTING"}},
		{Timestamp: ts.Add(time.Second), ConnectionID: "conn-a", Attempt: 5, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{OldState: "CONNECTING", NewState: "FAILED"}},
	}
	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "Failures: 1") {
		t.Errorf("expected one failure\n%s", out)
	}
	if !strings.Contains(out, "never opened") {
		t.Errorf("expected connection that never opened\n%s", out)
	}
	if !strings.Contains(out, "Attempt: 5") {
		t.Errorf("expected attempt number\n%s", out)
	}
}

func TestStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}
