package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/form-relay/pkg/config"
	"github.com/telekom/form-relay/pkg/system"
)

func newMiniRedisQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	q := NewRedisQueue(RedisOptions{Addr: mr.Addr(), Key: "form-relay:test:" + uuid.NewString()}, system.NewTestLogger())
	t.Cleanup(func() { _ = q.Close() })
	return q, mr
}

func TestRedisQueue_RoundTrip(t *testing.T) {
	q, mr := newMiniRedisQueue(t)
	ctx := context.Background()

	first := NewJob(submission("first"), time.Now())
	second := NewJob(submission("second"), time.Now())
	second.Attempt = 2
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))
	assert.Equal(t, 2, q.Len())

	stored, err := mr.List(q.key)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Contains(t, stored[0], second.ID, "LPUSH puts the newest job at the head")

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, 2, got.Attempt)
	assert.Equal(t, "second", got.Submission.Message)
	assert.Zero(t, q.Len())
}

func TestRedisQueue_DequeueWaitsForJob(t *testing.T) {
	q, _ := newMiniRedisQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan *Job, 1)
	go func() {
		job, err := q.Dequeue(ctx)
		if err == nil {
			got <- job
		}
	}()

	job := NewJob(submission("late"), time.Now())
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, job))

	select {
	case j := <-got:
		assert.Equal(t, job.ID, j.ID)
	case <-ctx.Done():
		t.Fatal("job was not dequeued")
	}
}

func TestRedisQueue_DiscardsMalformedJobs(t *testing.T) {
	q, mr := newMiniRedisQueue(t)
	ctx := context.Background()

	_, err := mr.Lpush(q.key, "{not json")
	require.NoError(t, err)
	job := NewJob(submission("valid"), time.Now())
	require.NoError(t, q.Enqueue(ctx, job))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
}

func TestRedisQueue_DequeueHonoursCancellation(t *testing.T) {
	q := NewRedisQueue(RedisOptions{Addr: "127.0.0.1:1", Key: "unused"}, nil)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewQueue(t *testing.T) {
	q, err := NewQueue(config.Queue{Driver: "memory", Size: 3}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryQueue{}, q)

	q, err = NewQueue(config.Queue{Driver: "redis", RedisAddr: "127.0.0.1:1", RedisKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &RedisQueue{}, q)
	_ = q.(*RedisQueue).Close()

	_, err = NewQueue(config.Queue{Driver: "kafka"}, nil)
	assert.Error(t, err)
}
