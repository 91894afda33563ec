package schedule

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a handle to a scheduled task.
type Timer interface {
	// Stop cancels the task. It returns false if the task already ran
	// or was already stopped.
	Stop() bool
}

// Scheduler runs functions after a relative delay.
// Implementations must be safe for concurrent use.
type Scheduler interface {
	// AfterFunc runs f once, on its own goroutine, after d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer

	// Now returns the scheduler's current time.
	Now() time.Time
}

// Clock is a Scheduler backed by a clockwork.Clock.
type Clock struct {
	clock clockwork.Clock
}

// NewClock wraps c. A nil clock uses the real wall clock.
func NewClock(c clockwork.Clock) *Clock {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	return &Clock{clock: c}
}

// Real returns a Scheduler using wall-clock time.
func Real() *Clock {
	return NewClock(nil)
}

// AfterFunc implements Scheduler.
func (c *Clock) AfterFunc(d time.Duration, f func()) Timer {
	return c.clock.AfterFunc(d, f)
}

// Now implements Scheduler.
func (c *Clock) Now() time.Time {
	return c.clock.Now()
}

// Compile-time interface satisfaction check.
var _ Scheduler = (*Clock)(nil)
