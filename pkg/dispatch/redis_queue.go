package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisPopTimeout = time.Second

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisQueue stores jobs as JSON in a Redis list. LPUSH adds at the head and
// BRPOP takes from the tail, so jobs are served in FIFO order.
type RedisQueue struct {
	client *redis.Client
	key    string
	log    *zap.SugaredLogger
}

func NewRedisQueue(opts RedisOptions, log *zap.SugaredLogger) *RedisQueue {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	// Redis may come up after us; log and keep going.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warnw("Failed to connect to Redis", "addr", opts.Addr, "error", err)
	}

	return newRedisQueue(rdb, opts.Key, log)
}

func newRedisQueue(client *redis.Client, key string, log *zap.SugaredLogger) *RedisQueue {
	return &RedisQueue{client: client, key: key, log: log}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.ID, err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrQueueFull, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := q.client.BRPop(ctx, redisPopTimeout, q.key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			q.log.Warnw("Redis dequeue failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(redisPopTimeout):
			}
			continue
		}

		// result is [key, value]
		if len(result) < 2 {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			q.log.Errorw("Discarding undecodable job", "error", err, "raw", result[1])
			continue
		}
		return &job, nil
	}
}

func (q *RedisQueue) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), redisPopTimeout)
	defer cancel()
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
