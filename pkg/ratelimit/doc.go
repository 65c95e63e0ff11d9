// Package ratelimit provides per-client admission control over a rolling time
// window, with lazy and periodic eviction of expired keys and a Gin middleware
// that answers 429 on denial.
package ratelimit
