package discovery

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mash-protocol/eventlink-go/pkg/lifecycle"
)

// ErrAlreadyStarted is returned by a second PresenceSource.Start.
var ErrAlreadyStarted = errors.New("presence source already started")

// PresenceSource reports a server as reachable while at least one matching
// instance is announced. It never reports visibility.
type PresenceSource struct {
	browser  Browser
	instance string
	logger   *slog.Logger

	mu      sync.Mutex
	started bool

	reachable chan bool
}

// NewPresenceSource watches b for instance, or for any server when
// instance is empty.
func NewPresenceSource(b Browser, instance string, logger *slog.Logger) *PresenceSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PresenceSource{
		browser:   b,
		instance:  instance,
		logger:    logger,
		reachable: make(chan bool, 1),
	}
}

// Start begins browsing. The reachability channel closes when ctx is done.
func (p *PresenceSource) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true
	p.mu.Unlock()

	events, err := p.browser.Browse(ctx)
	if err != nil {
		close(p.reachable)
		return err
	}
	go p.run(events)
	return nil
}

// Visible implements lifecycle.SignalSource. Presence carries no
// visibility information, so the channel is nil.
func (p *PresenceSource) Visible() <-chan bool { return nil }

// Reachable implements lifecycle.SignalSource.
func (p *PresenceSource) Reachable() <-chan bool { return p.reachable }

func (p *PresenceSource) run(events <-chan Event) {
	defer close(p.reachable)

	present := make(map[string]bool)
	var last *bool
	for ev := range events {
		if p.instance != "" && ev.Endpoint.Instance != p.instance {
			continue
		}
		switch ev.Type {
		case EventAdded:
			present[ev.Endpoint.Instance] = true
		case EventRemoved:
			delete(present, ev.Endpoint.Instance)
		}

		reachable := len(present) > 0
		if last != nil && *last == reachable {
			continue
		}
		last = &reachable
		p.logger.Debug("server presence changed", "instance", ev.Endpoint.Instance, "reachable", reachable)
		p.push(reachable)
	}
}

// push keeps only the latest undelivered value. run is the sole sender.
func (p *PresenceSource) push(v bool) {
	select {
	case p.reachable <- v:
	default:
		select {
		case <-p.reachable:
		default:
		}
		p.reachable <- v
	}
}

// Compile-time interface satisfaction check.
var _ lifecycle.SignalSource = (*PresenceSource)(nil)
