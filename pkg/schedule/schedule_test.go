package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockAfterFuncFiresOnAdvance(t *testing.T) {
	fake := clockwork.NewFakeClock()
	s := NewClock(fake)

	var fired atomic.Bool
	s.AfterFunc(time.Second, func() { fired.Store(true) })

	fake.Advance(999 * time.Millisecond)
	assert.False(t, fired.Load())

	fake.Advance(time.Millisecond)
	require.Eventually(t, fired.Load, time.Second, 5*time.Millisecond)
}

func TestClockStopCancels(t *testing.T) {
	fake := clockwork.NewFakeClock()
	s := NewClock(fake)

	var fired atomic.Bool
	timer := s.AfterFunc(time.Second, func() { fired.Store(true) })
	assert.True(t, timer.Stop())

	fake.Advance(2 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestClockNow(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := clockwork.NewFakeClockAt(start)
	s := NewClock(fake)

	assert.Equal(t, start, s.Now())
	fake.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute), s.Now())
}

func TestRealClock(t *testing.T) {
	s := Real()

	done := make(chan struct{})
	s.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
}
