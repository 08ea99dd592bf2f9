package bus

import (
	"context"
	"sync"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus on Redis pub/sub. Publishes are serialized by a
// mutex so interleaved writers cannot corrupt per-connection ordering.
type RedisBus struct {
	client *redis.Client
	logger logger.ILogger

	mu   sync.Mutex
	subs []*redis.PubSub
	wg   sync.WaitGroup
}

func NewRedisBus(client *redis.Client, log logger.ILogger) *RedisBus {
	return &RedisBus{client: client, logger: log}
}

func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return apperror.Wrap(apperror.KindServiceUnavailable, "bus publish failed", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, channels []string, handler MessageHandler) error {
	sub := b.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		return apperror.Wrap(apperror.KindServiceUnavailable, "bus subscribe failed", err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := handler(ctx, msg.Channel, []byte(msg.Payload)); err != nil {
					b.logger.Error("message_bus", "subscriber handler failed", map[string]interface{}{
						"channel": msg.Channel,
						"error":   err,
					})
				}
			}
		}
	}()
	return nil
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			b.logger.Warn("message_bus", "subscription close failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	b.wg.Wait()
	return nil
}
