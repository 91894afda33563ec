package connection

import (
	"errors"
	"fmt"
	"time"
)

// Backoff defaults.
const (
	// DefaultBaseDelay is the delay before the first reconnect attempt.
	DefaultBaseDelay = 1 * time.Second

	// DefaultMaxDelay caps the exponential growth.
	DefaultMaxDelay = 30 * time.Second

	// DefaultMaxAttempts is the number of reconnects before giving up.
	DefaultMaxAttempts = 5
)

// ResetMode selects when the reconnect attempt counter returns to zero.
type ResetMode uint8

const (
	// ResetOnOpen resets the counter as soon as a connection opens.
	ResetOnOpen ResetMode = iota

	// ResetOnHeartbeatAck resets the counter on the first heartbeat ack
	// after a connection opens, so servers that accept and immediately
	// drop connections still exhaust the retry budget.
	ResetOnHeartbeatAck
)

// String returns the configuration name of the mode.
func (r ResetMode) String() string {
	switch r {
	case ResetOnOpen:
		return "open"
	case ResetOnHeartbeatAck:
		return "heartbeat_ack"
	default:
		return "unknown"
	}
}

// ParseResetMode parses a configuration name. The empty string is ResetOnOpen.
func ParseResetMode(s string) (ResetMode, error) {
	switch s {
	case "", "open":
		return ResetOnOpen, nil
	case "heartbeat_ack":
		return ResetOnHeartbeatAck, nil
	default:
		return ResetOnOpen, fmt.Errorf("unknown reset mode %q", s)
	}
}

// BackoffPolicy computes reconnect delays and the retry budget.
// It is a value type with no internal state.
type BackoffPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts uint
	Reset       ResetMode
}

// DefaultBackoffPolicy returns 1s base, 30s cap and 5 attempts.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		MaxAttempts: DefaultMaxAttempts,
		Reset:       ResetOnOpen,
	}
}

// Delay returns min(BaseDelay * 2^(attempt-1), MaxDelay) for attempt >= 1.
// Attempt 0 is treated as 1.
func (p BackoffPolicy) Delay(attempt uint) time.Duration {
	if attempt <= 1 {
		return min(p.BaseDelay, p.MaxDelay)
	}

	d := p.BaseDelay
	for i := uint(1); i < attempt; i++ {
		// Doubling past MaxDelay (or overflowing) clamps.
		if d >= p.MaxDelay || d > d<<1 {
			return p.MaxDelay
		}
		d <<= 1
	}
	return min(d, p.MaxDelay)
}

// ShouldRetry reports whether attempt is within the retry budget.
func (p BackoffPolicy) ShouldRetry(attempt uint) bool {
	return attempt <= p.MaxAttempts
}

// Sequence returns the delays for attempts 1..MaxAttempts.
func (p BackoffPolicy) Sequence() []time.Duration {
	seq := make([]time.Duration, 0, p.MaxAttempts)
	for a := uint(1); a <= p.MaxAttempts; a++ {
		seq = append(seq, p.Delay(a))
	}
	return seq
}

// Validate reports configuration errors.
func (p BackoffPolicy) Validate() error {
	var errs []error
	if p.BaseDelay <= 0 {
		errs = append(errs, errors.New("base delay must be positive"))
	}
	if p.MaxDelay <= 0 {
		errs = append(errs, errors.New("max delay must be positive"))
	}
	if p.BaseDelay > p.MaxDelay {
		errs = append(errs, fmt.Errorf("base delay %s exceeds max delay %s", p.BaseDelay, p.MaxDelay))
	}
	if p.MaxAttempts == 0 {
		errs = append(errs, errors.New("max attempts must be at least 1"))
	}
	if p.Reset > ResetOnHeartbeatAck {
		errs = append(errs, fmt.Errorf("unknown reset mode %d", p.Reset))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid backoff policy: %w", errors.Join(errs...))
	}
	return nil
}
