package libsession

import (
	"math"
	"time"
)

// BackoffPolicy computes reconnect delays as Base * Multiplier^(attempt-1), capped at Max.
// It holds no state; the manager owns the attempt counter.
type BackoffPolicy struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
}

// NewBackoffPolicy builds the policy configured in cfg.
func NewBackoffPolicy(cfg Config) BackoffPolicy {
	return BackoffPolicy{
		Base:       cfg.ReconnectDelay,
		Multiplier: cfg.ReconnectMultiplier,
		Max:        cfg.MaxReconnectDelay,
	}
}

// NextDelay returns the wait before retry number attempt (1-based). The result is never
// negative, even when the curve overflows a time.Duration.
func (p BackoffPolicy) NextDelay(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	multiplier := p.Multiplier
	if math.IsNaN(multiplier) || multiplier < 1.0 {
		multiplier = 1.0
	}

	delay := float64(p.Base) * math.Pow(multiplier, float64(attempt-1))
	if math.IsNaN(delay) || delay >= float64(math.MaxInt64) {
		if p.Max > 0 {
			return p.Max
		}
		return time.Duration(math.MaxInt64)
	}
	if p.Max > 0 && delay > float64(p.Max) {
		return p.Max
	}
	return time.Duration(delay)
}

// ShouldRetry reports whether another attempt may be scheduled after attempt failures.
func (p BackoffPolicy) ShouldRetry(attempt, maxAttempts int) bool {
	return attempt < maxAttempts
}

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. The manager keeps at most one pending timer.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
