package lifecycle

import "sync"

// ManualSource is a SignalSource fed by the host. Each channel holds only
// the latest undelivered value, so senders never block.
type ManualSource struct {
	mu        sync.Mutex
	closed    bool
	visible   chan bool
	reachable chan bool
}

// NewManualSource creates an open ManualSource.
func NewManualSource() *ManualSource {
	return &ManualSource{
		visible:   make(chan bool, 1),
		reachable: make(chan bool, 1),
	}
}

// Visible implements SignalSource.
func (s *ManualSource) Visible() <-chan bool { return s.visible }

// Reachable implements SignalSource.
func (s *ManualSource) Reachable() <-chan bool { return s.reachable }

// SetVisible publishes a visibility value.
func (s *ManualSource) SetVisible(v bool) { s.push(s.visible, v) }

// SetReachable publishes a reachability value.
func (s *ManualSource) SetReachable(v bool) { s.push(s.reachable, v) }

// Close closes both channels. Later values are dropped.
func (s *ManualSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.visible)
	close(s.reachable)
}

func (s *ManualSource) push(ch chan bool, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case ch <- v:
	default:
		// Replace the stale value.
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// Compile-time interface satisfaction check.
var _ SignalSource = (*ManualSource)(nil)
