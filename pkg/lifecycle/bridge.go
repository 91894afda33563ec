package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mash-protocol/eventlink-go/pkg/connection"
)

// Controller is the part of connection.Manager the Bridge drives.
type Controller interface {
	State() connection.State
	Open() error
	PauseHeartbeat()
	ResumeHeartbeat()
}

// SignalSource delivers visibility and reachability changes.
// A closed channel stops delivery of that signal.
type SignalSource interface {
	Visible() <-chan bool
	Reachable() <-chan bool
}

// Bridge maps lifecycle signals onto a Controller.
type Bridge struct {
	ctrl   Controller
	logger *slog.Logger

	mu        sync.Mutex
	visible   bool
	reachable bool
}

// NewBridge creates a Bridge. A nil logger uses slog.Default().
func NewBridge(ctrl Controller, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		ctrl:      ctrl,
		logger:    logger,
		visible:   true,
		reachable: true,
	}
}

// Visible returns the last visibility signal.
func (b *Bridge) Visible() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.visible
}

// Reachable returns the last reachability signal.
func (b *Bridge) Reachable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reachable
}

// SetVisible records the visibility signal. Repeated values are ignored.
func (b *Bridge) SetVisible(visible bool) {
	b.mu.Lock()
	if b.visible == visible {
		b.mu.Unlock()
		return
	}
	b.visible = visible
	b.mu.Unlock()

	b.logger.Debug("visibility changed", "visible", visible)
	if visible {
		b.ctrl.ResumeHeartbeat()
	} else {
		b.ctrl.PauseHeartbeat()
	}
}

// SetReachable records the reachability signal. Repeated values are ignored.
func (b *Bridge) SetReachable(reachable bool) {
	b.mu.Lock()
	if b.reachable == reachable {
		b.mu.Unlock()
		return
	}
	b.reachable = reachable
	b.mu.Unlock()

	b.logger.Debug("reachability changed", "reachable", reachable)
	if !reachable {
		return
	}

	switch state := b.ctrl.State(); state {
	case connection.StateIdle, connection.StateFailed:
		// The state may move between the check and Open; losing that race
		// means someone else already started connecting.
		if err := b.ctrl.Open(); err != nil && !errors.Is(err, connection.ErrInvalidState) {
			b.logger.Warn("open on reachability failed", "error", err)
		}
	}
}

// Run applies signals from src until ctx is done or both channels close.
func (b *Bridge) Run(ctx context.Context, src SignalSource) error {
	visible, reachable := src.Visible(), src.Reachable()
	for visible != nil || reachable != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok := <-visible:
			if !ok {
				visible = nil
				continue
			}
			b.SetVisible(v)
		case r, ok := <-reachable:
			if !ok {
				reachable = nil
				continue
			}
			b.SetReachable(r)
		}
	}
	return nil
}
