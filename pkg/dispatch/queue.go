package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/telekom/form-relay/pkg/config"
)

var (
	// ErrQueueFull is returned when a job could not be queued before the
	// enqueue deadline.
	ErrQueueFull = errors.New("delivery queue is full")
	// ErrStopped is returned for submissions made after Stop.
	ErrStopped = errors.New("dispatcher is stopped")
)

// Queue hands jobs from the intake side to the workers.
type Queue interface {
	// Enqueue blocks until the job is stored or ctx is done.
	Enqueue(ctx context.Context, job *Job) error
	// Dequeue blocks until a job is available or ctx is done.
	Dequeue(ctx context.Context) (*Job, error)
	Len() int
}

// drainer is implemented by queues whose content does not survive the process.
type drainer interface {
	Drain() []*Job
}

// MemoryQueue is a bounded in-process queue.
type MemoryQueue struct {
	ch chan *Job
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1
	}
	return &MemoryQueue{ch: make(chan *Job, size)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job *Job) error {
	select {
	case q.ch <- job:
		return nil
	default:
	}
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrQueueFull, ctx.Err())
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Job, error) {
	select {
	case job := <-q.ch:
		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

// Drain removes and returns every queued job without blocking.
func (q *MemoryQueue) Drain() []*Job {
	var jobs []*Job
	for {
		select {
		case job := <-q.ch:
			jobs = append(jobs, job)
		default:
			return jobs
		}
	}
}

// NewQueue builds the queue selected by the configuration.
func NewQueue(cfg config.Queue, log *zap.SugaredLogger) (Queue, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryQueue(cfg.Size), nil
	case "redis":
		return NewRedisQueue(RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		}, log), nil
	default:
		return nil, fmt.Errorf("unsupported queue driver %q", cfg.Driver)
	}
}
