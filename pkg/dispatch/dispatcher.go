// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/telekom/form-relay/pkg/config"
	"github.com/telekom/form-relay/pkg/events"
	"github.com/telekom/form-relay/pkg/fallback"
	"github.com/telekom/form-relay/pkg/metrics"
	"github.com/telekom/form-relay/pkg/sms"
	"github.com/telekom/form-relay/pkg/validation"
)

var errShutdown = errors.New("dispatcher shut down before the retry was due")

// Primary is the channel every job is first tried on.
type Primary interface {
	Send(ctx context.Context, sub validation.Submission) error
}

// Secondary receives the alert for a job that exhausted its attempts.
type Secondary interface {
	Send(ctx context.Context, a sms.Alert) error
}

// Recorder persists jobs that exhausted their attempts.
type Recorder interface {
	Append(ctx context.Context, r fallback.Record) error
}

// EventSink receives terminal job events.
type EventSink interface {
	Write(ctx context.Context, e *events.Event) error
}

type Config struct {
	// MaxRetries is the total number of primary attempts per job.
	MaxRetries int
	Workers    int
	// EnqueueTimeout bounds how long Deliver waits for queue space.
	EnqueueTimeout    time.Duration
	AttemptTimeout    time.Duration
	EscalationTimeout time.Duration
}

// ConfigFrom maps the service configuration onto dispatcher settings.
func ConfigFrom(d config.Delivery, q config.Queue) Config {
	return Config{
		MaxRetries:     d.MaxRetries,
		Workers:        d.Workers,
		EnqueueTimeout: q.EnqueueTimeout,
	}
}

func (c *Config) defaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.EnqueueTimeout <= 0 {
		c.EnqueueTimeout = 2 * time.Second
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = time.Minute
	}
	if c.EscalationTimeout <= 0 {
		c.EscalationTimeout = 30 * time.Second
	}
}

type Option func(*Dispatcher)

// WithClock sets the clock used for retry timers and timestamps.
func WithClock(c clock.WithDelayedExecution) Option {
	return func(d *Dispatcher) {
		d.clock = c
	}
}

func WithBackoff(b Backoff) Option {
	return func(d *Dispatcher) {
		d.backoff = b
	}
}

func WithEvents(s EventSink) Option {
	return func(d *Dispatcher) {
		d.events = s
	}
}

type pendingRetry struct {
	job   *Job
	timer clock.Timer
}

// Dispatcher runs jobs through Pending -> (Sending -> Pending)* -> {Delivered | Escalated}.
type Dispatcher struct {
	cfg       Config
	queue     Queue
	primary   Primary
	secondary Secondary
	store     Recorder
	events    EventSink
	backoff   Backoff
	clock     clock.WithDelayedExecution
	log       *zap.SugaredLogger

	mu      sync.Mutex
	pending map[string]*pendingRetry
	started bool
	stopped bool

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	requeues sync.WaitGroup
}

func New(cfg Config, q Queue, primary Primary, secondary Secondary, store Recorder, log *zap.SugaredLogger, opts ...Option) *Dispatcher {
	cfg.defaults()
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	d := &Dispatcher{
		cfg:       cfg,
		queue:     q,
		primary:   primary,
		secondary: secondary,
		store:     store,
		backoff:   NewRandomBackoff(5*time.Second, 20*time.Second),
		clock:     clock.RealClock{},
		log:       log,
		pending:   make(map[string]*pendingRetry),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the worker pool. It is a no-op when already started.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
	d.log.Infow("Dispatcher started", "workers", d.cfg.Workers, "maxRetries", d.cfg.MaxRetries)
}

// Deliver queues a submission for asynchronous delivery and returns the job ID.
// Only a failure to queue the job is reported.
func (d *Dispatcher) Deliver(ctx context.Context, sub validation.Submission) (string, error) {
	if d.isStopped() {
		return "", ErrStopped
	}
	job := NewJob(sub, d.clock.Now())
	if err := d.enqueue(ctx, job); err != nil {
		metrics.JobsDropped.Inc()
		d.emit(events.NewEvent(events.TypeDropped, job.ID, 0, sub.Email, d.clock.Now()).WithDetail("error", err.Error()))
		return "", err
	}
	return job.ID, nil
}

// DeliverNow makes the first attempt synchronously. If it fails the job
// continues through the normal retry path and the attempt error is returned.
func (d *Dispatcher) DeliverNow(ctx context.Context, sub validation.Submission) (string, error) {
	if d.isStopped() {
		return "", ErrStopped
	}
	job := NewJob(sub, d.clock.Now())
	if err := d.attempt(ctx, job); err != nil {
		return job.ID, err
	}
	return job.ID, nil
}

func (d *Dispatcher) enqueue(ctx context.Context, job *Job) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.EnqueueTimeout)
	defer cancel()
	if err := d.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("queueing job %s: %w", job.ID, err)
	}
	metrics.JobsQueued.Inc()
	return nil
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	log := d.log.With("worker", id)
	for {
		job, err := d.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Errorw("Dequeue failed", "error", err)
			continue
		}
		// In-flight attempts finish even when Stop cancels the worker context.
		_ = d.attempt(context.WithoutCancel(ctx), job)
	}
}

// attempt makes one primary send and moves the job to its next state.
func (d *Dispatcher) attempt(ctx context.Context, job *Job) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
	err := d.primary.Send(sendCtx, job.Submission)
	cancel()
	job.Attempt++

	if err == nil {
		metrics.JobsDelivered.Inc()
		d.log.Infow("Notification delivered", "jobID", job.ID, "attempt", job.Attempt)
		d.emit(events.NewEvent(events.TypeDelivered, job.ID, job.Attempt, job.Submission.Email, d.clock.Now()))
		return nil
	}

	d.log.Warnw("Delivery attempt failed", "jobID", job.ID, "attempt", job.Attempt, "maxRetries", d.cfg.MaxRetries, "error", err)
	if job.Attempt >= d.cfg.MaxRetries {
		d.escalate(job, err)
		return err
	}
	d.scheduleRetry(job, err)
	return err
}

func (d *Dispatcher) scheduleRetry(job *Job, cause error) {
	delay := d.backoff.Next(job.Attempt)

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		d.escalate(job, cause)
		return
	}
	job.NextAttemptAt = d.clock.Now().Add(delay)
	// Once the job is in pending another worker may own it; only locals after this.
	id, attempt := job.ID, job.Attempt
	p := &pendingRetry{job: job}
	d.pending[id] = p
	// Fake clocks run the callback synchronously under their own lock, so the
	// requeue must not happen inline.
	p.timer = d.clock.AfterFunc(delay, func() { go d.requeue(id) })
	d.mu.Unlock()

	metrics.RetriesScheduled.Inc()
	metrics.BackoffSeconds.Observe(delay.Seconds())
	d.log.Debugw("Retry scheduled", "jobID", id, "attempt", attempt, "delay", delay)
}

func (d *Dispatcher) requeue(jobID string) {
	d.mu.Lock()
	p, ok := d.pending[jobID]
	if !ok || d.stopped {
		// Stop has taken ownership of the job.
		d.mu.Unlock()
		return
	}
	delete(d.pending, jobID)
	// Stop waits for in-flight requeues before draining the queue.
	d.requeues.Add(1)
	d.mu.Unlock()
	defer d.requeues.Done()

	if err := d.enqueue(context.Background(), p.job); err != nil {
		d.log.Errorw("Failed to requeue job, escalating", "jobID", jobID, "error", err)
		d.escalate(p.job, err)
	}
}

// escalate runs the two terminal actions for an exhausted job. They are
// independent: a failure of one never skips the other, and neither is retried.
func (d *Dispatcher) escalate(job *Job, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.EscalationTimeout)
	defer cancel()

	metrics.JobsEscalated.Inc()
	d.log.Errorw("Delivery exhausted, escalating", "jobID", job.ID, "attempts", job.Attempt, "sender", job.Submission.Email, "error", cause)

	var (
		wg                 sync.WaitGroup
		alertErr, storeErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if alertErr = d.secondary.Send(ctx, sms.NewAlert(job.Submission, "")); alertErr != nil {
			d.log.Errorw("Escalation alert failed", "jobID", job.ID, "error", alertErr)
		}
	}()
	go func() {
		defer wg.Done()
		storeErr = d.store.Append(ctx, fallback.Record{
			SenderEmail: job.Submission.Email,
			Message:     job.Submission.Message,
			CreatedAt:   d.clock.Now().UTC(),
		})
		if storeErr != nil {
			d.log.Errorw("Fallback record write failed", "jobID", job.ID, "error", storeErr)
		}
	}()
	wg.Wait()

	e := events.NewEvent(events.TypeEscalated, job.ID, job.Attempt, job.Submission.Email, d.clock.Now()).
		WithDetail("error", cause.Error()).
		WithDetail("alert_sent", fmt.Sprint(alertErr == nil)).
		WithDetail("fallback_recorded", fmt.Sprint(storeErr == nil))
	d.emit(e)
}

func (d *Dispatcher) emit(e *events.Event) {
	if d.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.events.Write(ctx, e); err != nil {
		d.log.Debugw("Event not published", "eventID", e.ID, "error", err)
	}
}

func (d *Dispatcher) isStopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

// PendingRetries returns the number of jobs waiting for their backoff delay.
func (d *Dispatcher) PendingRetries() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop rejects new submissions, cancels pending retry timers and waits for the
// workers to finish their current attempt. Jobs that were waiting for a retry,
// and jobs left in a queue that does not survive the process, are escalated.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	pending := d.pending
	d.pending = make(map[string]*pendingRetry)
	for _, p := range pending {
		p.timer.Stop()
	}
	cancel := d.cancel
	d.mu.Unlock()

	d.log.Infow("Stopping dispatcher", "pendingRetries", len(pending), "queued", d.queue.Len())
	if cancel != nil {
		cancel()
	}
	for _, p := range pending {
		d.escalate(p.job, errShutdown)
	}

	var err error
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		d.requeues.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("waiting for dispatcher workers: %w", ctx.Err())
	}

	if q, ok := d.queue.(drainer); ok {
		for _, job := range q.Drain() {
			d.escalate(job, errShutdown)
		}
	}
	d.log.Info("Dispatcher stopped")
	return err
}
