// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is used when TASK_QUEUE is empty.
const DefaultQueueName = "sitekit"

// RedisQueueConfig holds the broker connection parameters.
type RedisQueueConfig struct {
	URL       string // redis://[:password@]host:port/db
	Queue     string
	BlockWait time.Duration
}

// RedisQueue stores messages in a Redis list: LPUSH to publish, BRPOP to
// consume.
type RedisQueue struct {
	client *redis.Client
	key    string
	wait   time.Duration
}

// NewRedisQueue connects and pings the broker.
func NewRedisQueue(cfg RedisQueueConfig) (*RedisQueue, error) {
	if cfg.URL == "" {
		return nil, errors.New("tasks: redis broker URL is empty")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("tasks: parse redis broker URL: %w", err)
	}
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueueName
	}
	wait := cfg.BlockWait
	if wait <= 0 {
		wait = time.Second
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("tasks: connect to redis broker: %w", err)
	}
	return &RedisQueue{client: client, key: "sitekit:tasks:" + queue, wait: wait}, nil
}

// Publish pushes msg onto the list.
func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	b, err := encode(msg)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, b).Err(); err != nil {
		return fmt.Errorf("tasks: redis publish %s: %w", msg.Name, err)
	}
	return nil
}

// Len reports the number of queued messages.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Consume pops messages with BRPOP until ctx is done. The first broker
// error stops every worker and is returned.
func (q *RedisQueue) Consume(ctx context.Context, workers int, handler Handler) error {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				values, err := q.client.BRPop(ctx, q.wait, q.key).Result()
				if err != nil {
					if errors.Is(err, redis.Nil) {
						continue
					}
					if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
						return
					}
					fail(fmt.Errorf("tasks: redis consume: %w", err))
					return
				}
				if len(values) != 2 {
					continue
				}
				msg, err := decode([]byte(values[1]))
				if err != nil {
					// Undecodable payloads are dropped; retrying cannot fix them.
					continue
				}
				_ = handler(ctx, msg)
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return context.Cause(ctx)
}

// HealthCheck pings the broker.
func (q *RedisQueue) HealthCheck(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close closes the connection pool.
func (q *RedisQueue) Close() error {
	if q == nil || q.client == nil {
		return nil
	}
	return q.client.Close()
}
