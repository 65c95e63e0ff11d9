package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Intake metrics
	SubmissionsAccepted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formrelay_submissions_accepted_total",
		Help: "Total number of submissions accepted into the delivery pipeline",
	}, []string{"mode"})
	SubmissionsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formrelay_submissions_rejected_total",
		Help: "Total number of submissions rejected at intake",
	}, []string{"reason"})
	RateLimitDenied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "formrelay_ratelimit_denied_total",
		Help: "Total number of requests denied by the per-client rate limiter",
	})

	// Mail metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formrelay_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formrelay_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"host"})

	// Dispatch metrics
	JobsQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "formrelay_jobs_queued_total",
		Help: "Total number of notification jobs handed to the queue",
	})
	JobsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "formrelay_jobs_dropped_total",
		Help: "Total number of notification jobs that could not be queued",
	})
	JobsDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "formrelay_jobs_delivered_total",
		Help: "Total number of notification jobs delivered through the primary channel",
	})
	RetriesScheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "formrelay_retries_scheduled_total",
		Help: "Total number of delivery retries scheduled after a failed attempt",
	})
	JobsEscalated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "formrelay_jobs_escalated_total",
		Help: "Total number of notification jobs that exhausted their retries",
	})
	BackoffSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "formrelay_backoff_seconds",
		Help:    "Backoff delays chosen between delivery attempts",
		Buckets: []float64{1, 2.5, 5, 10, 15, 20, 30, 60},
	})

	// Escalation metrics
	SMSSendSuccess = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "formrelay_sms_send_success_total",
		Help: "Total number of escalation alerts sent",
	})
	SMSSendFailure = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "formrelay_sms_send_failure_total",
		Help: "Total number of escalation alerts that failed",
	})
	FallbackWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "formrelay_fallback_writes_total",
		Help: "Total number of fallback records persisted",
	})
	FallbackWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "formrelay_fallback_write_failures_total",
		Help: "Total number of fallback records that could not be persisted",
	})

	// Event sink metrics
	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formrelay_events_published_total",
		Help: "Total number of delivery events written to a sink",
	}, []string{"sink"})
	EventsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formrelay_events_failed_total",
		Help: "Total number of delivery events a sink failed to write",
	}, []string{"sink"})

	// Liveness probe
	LivenessProbes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formrelay_liveness_probes_total",
		Help: "Total number of liveness self-checks by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(SubmissionsAccepted)
	prometheus.MustRegister(SubmissionsRejected)
	prometheus.MustRegister(RateLimitDenied)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(JobsQueued)
	prometheus.MustRegister(JobsDropped)
	prometheus.MustRegister(JobsDelivered)
	prometheus.MustRegister(RetriesScheduled)
	prometheus.MustRegister(JobsEscalated)
	prometheus.MustRegister(BackoffSeconds)
	prometheus.MustRegister(SMSSendSuccess)
	prometheus.MustRegister(SMSSendFailure)
	prometheus.MustRegister(FallbackWrites)
	prometheus.MustRegister(FallbackWriteFailures)
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(EventsFailed)
	prometheus.MustRegister(LivenessProbes)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
