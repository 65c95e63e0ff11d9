// Package metrics defines Prometheus metrics for form-relay, covering intake
// admission, delivery attempts, escalations, fallback writes and the liveness probe.
package metrics
