package queue

import (
	"context"
	"time"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	enqueueAttempts = 3
	enqueueBackoff  = 500 * time.Millisecond
)

// RedisQueue implements TaskQueue on a Redis list. LPUSH on submit, RPOP on
// consume keeps FIFO ordering.
type RedisQueue struct {
	client  *redis.Client
	channel string
	logger  logger.ILogger
}

func NewRedisQueue(client *redis.Client, channel string, log logger.ILogger) *RedisQueue {
	return &RedisQueue{client: client, channel: channel, logger: log}
}

func (q *RedisQueue) Enqueue(ctx context.Context, payload []byte) error {
	var lastErr error
	for attempt := 1; attempt <= enqueueAttempts; attempt++ {
		lastErr = q.client.LPush(ctx, q.channel, payload).Err()
		if lastErr == nil {
			return nil
		}
		q.logger.Warn("task_queue", "enqueue attempt failed", map[string]interface{}{
			"channel": q.channel,
			"attempt": attempt,
			"error":   lastErr.Error(),
		})
		if attempt < enqueueAttempts {
			select {
			case <-ctx.Done():
				return apperror.Wrap(apperror.KindTimeout, "enqueue cancelled", ctx.Err())
			case <-time.After(enqueueBackoff):
			}
		}
	}
	return apperror.Wrap(apperror.KindServiceUnavailable, "task submission failed", lastErr)
}

func (q *RedisQueue) Dequeue(ctx context.Context) ([]byte, error) {
	payload, err := q.client.RPop(ctx, q.channel).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, apperror.Wrap(apperror.KindServiceUnavailable, "dequeue failed", err)
	}
	return payload, nil
}

func (q *RedisQueue) Size(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.channel).Result()
	if err != nil {
		return 0, apperror.Wrap(apperror.KindServiceUnavailable, "queue size lookup failed", err)
	}
	return n, nil
}

func (q *RedisQueue) IsEmpty(ctx context.Context) (bool, error) {
	n, err := q.Size(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func (q *RedisQueue) Clear(ctx context.Context) error {
	return q.client.Del(ctx, q.channel).Err()
}

func (q *RedisQueue) Close() error {
	return nil
}
