// Package scheduletest provides a deterministic schedule.Scheduler for tests.
package scheduletest

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mash-protocol/eventlink-go/pkg/schedule"
)

// Scheduler is a fake schedule.Scheduler. Tasks run synchronously, in due
// order, on the goroutine calling Advance.
type Scheduler struct {
	clock *clockwork.FakeClock

	mu    sync.Mutex
	seq   uint64
	tasks []*task
}

type task struct {
	s   *Scheduler
	seq uint64
	due time.Time
	d   time.Duration
	f   func()
}

// New returns a Scheduler whose time starts at a fixed instant.
func New() *Scheduler {
	return &Scheduler{
		clock: clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
}

// AfterFunc implements schedule.Scheduler.
func (s *Scheduler) AfterFunc(d time.Duration, f func()) schedule.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &task{s: s, seq: s.seq, due: s.clock.Now().Add(d), d: d, f: f}
	s.tasks = append(s.tasks, t)
	return t
}

// Now implements schedule.Scheduler.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Advance moves time forward by d, running every task that becomes due.
// Tasks scheduled by running tasks also run if they fall inside the window.
func (s *Scheduler) Advance(d time.Duration) {
	end := s.clock.Now().Add(d)
	for {
		s.mu.Lock()
		next := s.nextDue(end)
		if next == nil {
			s.mu.Unlock()
			break
		}
		s.remove(next)
		if wait := next.due.Sub(s.clock.Now()); wait > 0 {
			s.clock.Advance(wait)
		}
		s.mu.Unlock()

		next.f()
	}

	s.mu.Lock()
	if wait := end.Sub(s.clock.Now()); wait > 0 {
		s.clock.Advance(wait)
	}
	s.mu.Unlock()
}

// Pending returns the number of scheduled tasks that have not run.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Delays returns the requested delays of pending tasks in due order.
func (s *Scheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := s.sorted()
	out := make([]time.Duration, len(sorted))
	for i, t := range sorted {
		out[i] = t.d
	}
	return out
}

// NextIn returns the time until the earliest pending task.
func (s *Scheduler) NextIn() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := s.sorted()
	if len(sorted) == 0 {
		return 0, false
	}
	return sorted[0].due.Sub(s.clock.Now()), true
}

// Stop implements schedule.Timer.
func (t *task) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.remove(t)
}

func (s *Scheduler) sorted() []*task {
	out := make([]*task, len(s.tasks))
	copy(out, s.tasks)
	sort.Slice(out, func(i, j int) bool {
		if out[i].due.Equal(out[j].due) {
			return out[i].seq < out[j].seq
		}
		return out[i].due.Before(out[j].due)
	})
	return out
}

func (s *Scheduler) nextDue(end time.Time) *task {
	sorted := s.sorted()
	if len(sorted) == 0 || sorted[0].due.After(end) {
		return nil
	}
	return sorted[0]
}

func (s *Scheduler) remove(t *task) bool {
	for i, p := range s.tasks {
		if p == t {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return true
		}
	}
	return false
}

// Compile-time interface satisfaction check.
var _ schedule.Scheduler = (*Scheduler)(nil)
