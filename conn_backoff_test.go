package libsession

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffPolicy_NextDelay(t *testing.T) {
	tests := []struct {
		name   string
		policy BackoffPolicy
		want   []time.Duration
	}{
		{
			name:   "default multiplier",
			policy: BackoffPolicy{Base: 2 * time.Second, Multiplier: 1.5, Max: 30 * time.Second},
			want:   []time.Duration{2000 * time.Millisecond, 3000 * time.Millisecond, 4500 * time.Millisecond, 6750 * time.Millisecond},
		},
		{
			name:   "doubling",
			policy: BackoffPolicy{Base: time.Second, Multiplier: 2},
			want:   []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second},
		},
		{
			name:   "capped",
			policy: BackoffPolicy{Base: time.Second, Multiplier: 10, Max: 5 * time.Second},
			want:   []time.Duration{time.Second, 5 * time.Second, 5 * time.Second},
		},
		{
			name:   "multiplier below one is flat",
			policy: BackoffPolicy{Base: time.Second, Multiplier: 0.5},
			want:   []time.Duration{time.Second, time.Second, time.Second},
		},
		{
			name:   "zero base",
			policy: BackoffPolicy{Multiplier: 2},
			want:   []time.Duration{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make([]time.Duration, 0, len(tt.want))
			for attempt := 1; attempt <= len(tt.want); attempt++ {
				got = append(got, tt.policy.NextDelay(attempt))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBackoffPolicy_NextDelayClampsAttempt(t *testing.T) {
	p := BackoffPolicy{Base: time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, p.NextDelay(0))
	assert.Equal(t, time.Second, p.NextDelay(-3))
}

func TestBackoffPolicy_ShouldRetry(t *testing.T) {
	p := NewBackoffPolicy(DefaultConfig())

	assert.True(t, p.ShouldRetry(0, 3))
	assert.True(t, p.ShouldRetry(2, 3))
	assert.False(t, p.ShouldRetry(3, 3))
	assert.False(t, p.ShouldRetry(0, 0))
}

func TestNewBackoffPolicy(t *testing.T) {
	p := NewBackoffPolicy(DefaultConfig())
	assert.Equal(t, BackoffPolicy{
		Base:       DefaultReconnectDelay,
		Multiplier: DefaultReconnectMultiplier,
		Max:        DefaultMaxReconnectDelay,
	}, p)
}

func TestBackoffPolicy_NextDelayNeverOverflows(t *testing.T) {
	tests := []struct {
		name   string
		policy BackoffPolicy
		want   time.Duration
	}{
		{
			name:   "uncapped curve saturates",
			policy: BackoffPolicy{Base: 2 * time.Second, Multiplier: 2},
			want:   time.Duration(math.MaxInt64),
		},
		{
			name:   "capped curve stays at max",
			policy: BackoffPolicy{Base: 2 * time.Second, Multiplier: 2, Max: 30 * time.Second},
			want:   30 * time.Second,
		},
		{
			name:   "infinite multiplier",
			policy: BackoffPolicy{Base: time.Second, Multiplier: math.Inf(1), Max: 30 * time.Second},
			want:   30 * time.Second,
		},
		{
			name:   "nan multiplier is flat",
			policy: BackoffPolicy{Base: time.Second, Multiplier: math.NaN(), Max: 30 * time.Second},
			want:   time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, attempt := range []int{2, 34, 64, 1000} {
				got := tt.policy.NextDelay(attempt)
				assert.Positive(t, got, "attempt %d", attempt)
				if attempt >= 64 {
					assert.Equal(t, tt.want, got, "attempt %d", attempt)
				}
			}
		})
	}
}
