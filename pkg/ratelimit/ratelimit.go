package ratelimit

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/utils/clock"

	"github.com/telekom/form-relay/pkg/apiresponses"
	"github.com/telekom/form-relay/pkg/metrics"
)

// Config holds rate limiter configuration
type Config struct {
	// Window is the length of one admission window per key
	Window time.Duration
	// Max is the number of admissions allowed per key per window
	Max int
	// CleanupInterval is how often expired entries are swept
	CleanupInterval time.Duration
}

// DefaultFormConfig returns the reference limits for the public form endpoint:
// 5 submissions per client per 24 hours.
func DefaultFormConfig() Config {
	return Config{
		Window:          24 * time.Hour,
		Max:             5,
		CleanupInterval: time.Minute,
	}
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// entry counts admissions for one key since windowStart
type entry struct {
	count       int
	windowStart time.Time
}

// Limiter implements per-key fixed-window admission with automatic cleanup
type Limiter struct {
	mu       sync.Mutex
	entries  map[string]*entry
	config   Config
	clock    clock.PassiveClock
	done     chan struct{}
	stopOnce sync.Once
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.PassiveClock) Option {
	return func(rl *Limiter) { rl.clock = c }
}

// New creates a new per-key limiter and starts its cleanup goroutine
func New(cfg Config, opts ...Option) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.Max <= 0 {
		cfg.Max = 5
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	rl := &Limiter{
		entries: make(map[string]*entry),
		config:  cfg,
		clock:   clock.RealClock{},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rl)
	}

	go rl.cleanup()

	return rl
}

// Allow reports whether one more admission for key fits in its current window
func (rl *Limiter) Allow(key string) bool {
	return rl.Admit(key).Allowed
}

// Admit checks and, when allowed, records an admission for key. Denied checks
// are not counted.
func (rl *Limiter) Admit(key string) Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	e, exists := rl.entries[key]
	if !exists || rl.expired(e, now) {
		e = &entry{windowStart: now}
		rl.entries[key] = e
	}

	d := Decision{
		Limit:   rl.config.Max,
		ResetAt: e.windowStart.Add(rl.config.Window),
	}
	if e.count >= rl.config.Max {
		return d
	}
	e.count++
	d.Allowed = true
	d.Remaining = rl.config.Max - e.count
	return d
}

func (rl *Limiter) expired(e *entry, now time.Time) bool {
	return now.Sub(e.windowStart) >= rl.config.Window
}

// Message is the client-facing text for a denied admission.
func (rl *Limiter) Message() string {
	return fmt.Sprintf("Too many requests from this IP, please try again after %s.", humanWindow(rl.config.Window))
}

// Middleware returns a Gin middleware that applies per-client-IP limiting and sets
// the RateLimit-* headers on every response.
func (rl *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		d := rl.Admit(c.ClientIP())
		reset := int(d.ResetAt.Sub(rl.clock.Now()).Round(time.Second).Seconds())
		if reset < 0 {
			reset = 0
		}
		c.Header("RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("RateLimit-Reset", strconv.Itoa(reset))

		if !d.Allowed {
			metrics.RateLimitDenied.Inc()
			c.Header("Retry-After", strconv.Itoa(reset))
			apiresponses.RespondTooManyRequests(c, rl.Message())
			c.Abort()
			return
		}
		c.Next()
	}
}

// Stop stops the cleanup goroutine
func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// cleanup periodically removes expired entries
func (rl *Limiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.cleanupExpiredEntries()
		}
	}
}

// cleanupExpiredEntries removes entries whose window has passed
func (rl *Limiter) cleanupExpiredEntries() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	removed := 0
	for key, e := range rl.entries {
		if rl.expired(e, now) {
			delete(rl.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the current number of tracked keys (for testing/metrics)
func (rl *Limiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

// Config returns a copy of the current configuration (for testing)
func (rl *Limiter) Config() Config {
	return rl.config
}

func humanWindow(d time.Duration) string {
	switch {
	case d%(time.Hour) == 0 && d >= 2*time.Hour:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d == time.Hour:
		return "1 hour"
	case d%time.Minute == 0 && d >= 2*time.Minute:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}
