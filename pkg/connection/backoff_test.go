package connection

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelay(t *testing.T) {
	p := BackoffPolicy{BaseDelay: time.Second, MaxDelay: 30 * time.Second, MaxAttempts: 10}

	tests := []struct {
		attempt uint
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{7, 30 * time.Second},
		{64, 30 * time.Second},
		{math.MaxUint32, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestBackoffDelayZeroAttempt(t *testing.T) {
	p := DefaultBackoffPolicy()
	assert.Equal(t, p.BaseDelay, p.Delay(0))
}

func TestBackoffDelayOverflowClamps(t *testing.T) {
	p := BackoffPolicy{BaseDelay: time.Duration(math.MaxInt64 / 3), MaxDelay: time.Duration(math.MaxInt64), MaxAttempts: 3}
	assert.Equal(t, time.Duration(math.MaxInt64/3)*2, p.Delay(2))
	assert.Equal(t, time.Duration(math.MaxInt64), p.Delay(3))
	assert.Equal(t, time.Duration(math.MaxInt64), p.Delay(100))
}

func TestBackoffDelayMonotonic(t *testing.T) {
	p := BackoffPolicy{BaseDelay: 300 * time.Millisecond, MaxDelay: 7 * time.Second, MaxAttempts: 20}
	prev := time.Duration(0)
	for a := uint(1); a <= 20; a++ {
		d := p.Delay(a)
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, p.MaxDelay)
		prev = d
	}
}

func TestBackoffShouldRetry(t *testing.T) {
	p := BackoffPolicy{BaseDelay: time.Second, MaxDelay: time.Minute, MaxAttempts: 5}

	for a := uint(1); a <= 5; a++ {
		assert.True(t, p.ShouldRetry(a), "attempt %d", a)
	}
	assert.False(t, p.ShouldRetry(6))
	assert.False(t, p.ShouldRetry(100))
}

func TestBackoffSequence(t *testing.T) {
	p := BackoffPolicy{BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second, MaxAttempts: 6}
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		5 * time.Second,
		5 * time.Second,
	}, p.Sequence())
}

func TestBackoffValidate(t *testing.T) {
	require.NoError(t, DefaultBackoffPolicy().Validate())

	tests := []struct {
		name   string
		policy BackoffPolicy
		want   string
	}{
		{"zero base", BackoffPolicy{MaxDelay: time.Second, MaxAttempts: 1}, "base delay must be positive"},
		{"zero max", BackoffPolicy{BaseDelay: time.Second, MaxAttempts: 1}, "max delay must be positive"},
		{"base above max", BackoffPolicy{BaseDelay: 2 * time.Second, MaxDelay: time.Second, MaxAttempts: 1}, "exceeds max delay"},
		{"no attempts", BackoffPolicy{BaseDelay: time.Second, MaxDelay: time.Second}, "max attempts"},
		{"bad reset", BackoffPolicy{BaseDelay: time.Second, MaxDelay: time.Second, MaxAttempts: 1, Reset: 9}, "reset mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResetModeParse(t *testing.T) {
	for _, mode := range []ResetMode{ResetOnOpen, ResetOnHeartbeatAck} {
		got, err := ParseResetMode(mode.String())
		require.NoError(t, err)
		assert.Equal(t, mode, got)
	}

	got, err := ParseResetMode("")
	require.NoError(t, err)
	assert.Equal(t, ResetOnOpen, got)

	_, err = ParseResetMode("never")
	assert.Error(t, err)
	assert.Equal(t, "unknown", ResetMode(7).String())
}
