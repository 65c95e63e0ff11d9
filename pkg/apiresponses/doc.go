// Package apiresponses provides standardized HTTP API response helpers shared by
// the intake, captcha and rate limiting handlers.
package apiresponses
