package discovery

import (
	"context"
	"errors"
	"testing"
	"time"
)

func recvBool(t *testing.T, ch <-chan bool) bool {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for presence signal")
		return false
	}
}

func TestPresenceSourceTracksInstance(t *testing.T) {
	b := newFakeBrowser()
	p := NewPresenceSource(b, "kitchen", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if p.Visible() != nil {
		t.Error("Visible() should be nil")
	}

	b.events <- added("kitchen", "10.0.0.2")
	if !recvBool(t, p.Reachable()) {
		t.Error("want reachable after add")
	}

	b.events <- added("garage", "10.0.0.3")
	b.events <- removed("garage")
	b.events <- removed("kitchen")
	if recvBool(t, p.Reachable()) {
		t.Error("want unreachable after remove")
	}

	b.events <- added("kitchen", "10.0.0.2")
	if !recvBool(t, p.Reachable()) {
		t.Error("want reachable after re-add")
	}
}

func TestPresenceSourceAnyInstance(t *testing.T) {
	b := newFakeBrowser()
	p := NewPresenceSource(b, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	b.events <- added("a", "10.0.0.1")
	if !recvBool(t, p.Reachable()) {
		t.Fatal("want reachable")
	}

	// Still reachable while "b" remains.
	b.events <- added("b", "10.0.0.2")
	b.events <- removed("a")
	b.events <- removed("b")
	if recvBool(t, p.Reachable()) {
		t.Error("want unreachable once every instance is gone")
	}
}

func TestPresenceSourceClosesOnCancel(t *testing.T) {
	b := newFakeBrowser()
	p := NewPresenceSource(b, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	select {
	case _, ok := <-p.Reachable():
		if ok {
			t.Error("unexpected value after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("reachable channel not closed after cancel")
	}
}

func TestPresenceSourceStartTwice(t *testing.T) {
	b := newFakeBrowser()
	p := NewPresenceSource(b, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestPresenceSourceBrowseError(t *testing.T) {
	boom := errors.New("browse failed")
	p := NewPresenceSource(&fakeBrowser{err: boom}, "", nil)

	if err := p.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Start() error = %v, want %v", err, boom)
	}
	if _, ok := <-p.Reachable(); ok {
		t.Error("reachable channel should be closed")
	}
}
