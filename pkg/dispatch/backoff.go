package dispatch

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	BackoffRandom      = "random"
	BackoffExponential = "exponential"
)

// Backoff returns the delay to wait before the next attempt, given the number
// of attempts already made (starting at 1).
type Backoff interface {
	Next(attempt int) time.Duration
}

type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newLockedRand() *lockedRand {
	return &lockedRand{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// int64n returns a value in [0, n]; n < 1 yields 0.
func (r *lockedRand) int64n(n int64) int64 {
	if n < 1 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Int64N(n + 1)
}

// RandomBackoff draws every delay uniformly from [Min, Max].
type RandomBackoff struct {
	Min time.Duration
	Max time.Duration
	rnd *lockedRand
}

func NewRandomBackoff(minDelay, maxDelay time.Duration) *RandomBackoff {
	return &RandomBackoff{Min: minDelay, Max: maxDelay, rnd: newLockedRand()}
}

func (b *RandomBackoff) Next(int) time.Duration {
	return b.Min + time.Duration(b.rnd.int64n(int64(b.Max-b.Min)))
}

// ExponentialBackoff doubles the base delay per attempt, caps it at Max and
// picks a value in the upper half of that envelope. The result never leaves
// [Base, Max].
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
	rnd  *lockedRand
}

func NewExponentialBackoff(base, maxDelay time.Duration) *ExponentialBackoff {
	return &ExponentialBackoff{Base: base, Max: maxDelay, rnd: newLockedRand()}
}

func (b *ExponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	half := d / 2
	d = half + time.Duration(b.rnd.int64n(int64(d-half)))
	if d < b.Base {
		d = b.Base
	}
	return d
}

// NewBackoff returns the strategy with the given name.
func NewBackoff(strategy string, minDelay, maxDelay time.Duration) (Backoff, error) {
	if minDelay > maxDelay {
		return nil, fmt.Errorf("backoff min delay %s exceeds max delay %s", minDelay, maxDelay)
	}
	switch strategy {
	case "", BackoffRandom:
		return NewRandomBackoff(minDelay, maxDelay), nil
	case BackoffExponential:
		return NewExponentialBackoff(minDelay, maxDelay), nil
	default:
		return nil, fmt.Errorf("unknown backoff strategy %q", strategy)
	}
}
