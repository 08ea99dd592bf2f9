package bus

import (
	"context"
	"sync"

	"ai-accelerator-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// LocalBus implements Bus in-process on watermill's gochannel pub/sub. Used
// for single-binary deployments and tests.
type LocalBus struct {
	pubsub *gochannel.GoChannel
	logger logger.ILogger

	mu sync.Mutex
	wg sync.WaitGroup
}

func NewLocalBus(log logger.ILogger) *LocalBus {
	return &LocalBus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}),
		logger: log,
	}
}

func (b *LocalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pubsub.Publish(channel, message.NewMessage(watermill.NewUUID(), payload))
}

func (b *LocalBus) Subscribe(ctx context.Context, channels []string, handler MessageHandler) error {
	for _, channel := range channels {
		msgs, err := b.pubsub.Subscribe(ctx, channel)
		if err != nil {
			return err
		}

		b.wg.Add(1)
		go func(channel string, msgs <-chan *message.Message) {
			defer b.wg.Done()
			for msg := range msgs {
				if err := handler(ctx, channel, msg.Payload); err != nil {
					b.logger.Error("message_bus", "subscriber handler failed", map[string]interface{}{
						"channel": channel,
						"error":   err,
					})
				}
				msg.Ack()
			}
		}(channel, msgs)
	}
	return nil
}

func (b *LocalBus) Close() error {
	err := b.pubsub.Close()
	b.wg.Wait()
	return err
}
