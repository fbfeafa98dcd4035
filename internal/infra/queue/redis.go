// Package queue hands audit processing jobs to workers through a Redis list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audits"
)

// Options configures the Redis connection.
type Options struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string
	// Name of the list holding jobs.
	Queue string
	// PollTimeout bounds one BRPOP wait so workers notice shutdown.
	PollTimeout    time.Duration
	ConnectTimeout time.Duration
}

// Redis implements audits.Queue with LPUSH / BRPOP.
type Redis struct {
	client  *redis.Client
	queue   string
	timeout time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts Options) (*Redis, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.Queue == "" {
		opts.Queue = "audits:process"
	}
	if opts.PollTimeout == 0 {
		opts.PollTimeout = 5 * time.Second
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Redis{client: client, queue: opts.Queue, timeout: opts.PollTimeout}, nil
}

// Enqueue adds a job to the head of the list.
func (q *Redis) Enqueue(ctx context.Context, job audits.ProcessJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to push to queue %s: %w", q.queue, err)
	}
	return nil
}

// Dequeue pops the oldest job. It returns nil, nil when the poll times out.
func (q *Redis) Dequeue(ctx context.Context) (*audits.ProcessJob, error) {
	// BRPOP returns [queue_name, value] or redis.Nil on timeout
	result, err := q.client.BRPop(ctx, q.timeout, q.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue %s: %w", q.queue, err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result length: %d", len(result))
	}

	var job audits.ProcessJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// Len is the number of waiting jobs.
func (q *Redis) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queue).Result()
}

// Ping is used by the readiness check.
func (q *Redis) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (q *Redis) Close() error {
	return q.client.Close()
}
