package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomBackoff_WithinBounds(t *testing.T) {
	b := NewRandomBackoff(5*time.Second, 20*time.Second)

	seen := make(map[time.Duration]struct{})
	for i := 0; i < 200; i++ {
		d := b.Next(i%5 + 1)
		assert.GreaterOrEqual(t, d, 5*time.Second)
		assert.LessOrEqual(t, d, 20*time.Second)
		seen[d] = struct{}{}
	}
	assert.Greater(t, len(seen), 1, "delays should vary between calls")
}

func TestRandomBackoff_DifferentInstancesDiffer(t *testing.T) {
	a := NewRandomBackoff(5*time.Second, 20*time.Second)
	b := NewRandomBackoff(5*time.Second, 20*time.Second)

	var sa, sb []time.Duration
	for i := 1; i <= 10; i++ {
		sa = append(sa, a.Next(i))
		sb = append(sb, b.Next(i))
	}
	assert.NotEqual(t, sa, sb)
}

func TestRandomBackoff_EqualBounds(t *testing.T) {
	b := NewRandomBackoff(time.Second, time.Second)
	assert.Equal(t, time.Second, b.Next(3))
}

func TestExponentialBackoff_Envelope(t *testing.T) {
	b := NewExponentialBackoff(time.Second, 10*time.Second)

	tests := []struct {
		attempt int
		lo, hi  time.Duration
	}{
		{attempt: 0, lo: time.Second, hi: time.Second},
		{attempt: 1, lo: time.Second, hi: time.Second},
		{attempt: 2, lo: time.Second, hi: 2 * time.Second},
		{attempt: 3, lo: 2 * time.Second, hi: 4 * time.Second},
		{attempt: 4, lo: 4 * time.Second, hi: 8 * time.Second},
		{attempt: 5, lo: 5 * time.Second, hi: 10 * time.Second},
		{attempt: 30, lo: 5 * time.Second, hi: 10 * time.Second},
	}
	for _, tt := range tests {
		for i := 0; i < 50; i++ {
			d := b.Next(tt.attempt)
			require.GreaterOrEqual(t, d, tt.lo, "attempt %d", tt.attempt)
			require.LessOrEqual(t, d, tt.hi, "attempt %d", tt.attempt)
		}
	}
}

func TestNewBackoff(t *testing.T) {
	b, err := NewBackoff("", time.Second, 2*time.Second)
	require.NoError(t, err)
	assert.IsType(t, &RandomBackoff{}, b)

	b, err = NewBackoff(BackoffExponential, time.Second, 2*time.Second)
	require.NoError(t, err)
	assert.IsType(t, &ExponentialBackoff{}, b)

	_, err = NewBackoff("linear", time.Second, 2*time.Second)
	assert.Error(t, err)

	_, err = NewBackoff(BackoffRandom, 3*time.Second, time.Second)
	assert.Error(t, err)
}
