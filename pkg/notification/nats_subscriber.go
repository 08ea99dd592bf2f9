package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-accelerator-be/internal/pkg/logger"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventHandler processes one decoded event payload.
type EventHandler func(ctx context.Context, payload map[string]interface{}) error

// NatsSubscriber consumes orchestrator lifecycle events from the bus with a
// durable consumer so deliveries survive restarts.
type NatsSubscriber struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger logger.ILogger
}

func NewNatsSubscriber(url string, log logger.ILogger) (*NatsSubscriber, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NatsSubscriber{nc: nc, js: js, logger: log}, nil
}

// Subscribe registers a durable handler for one orchestrator.<event_type>
// subject. Handler failures nak the message for redelivery.
func (s *NatsSubscriber) Subscribe(eventType, durableName string, handler EventHandler) error {
	ctx := context.Background()

	consumer, err := s.js.CreateOrUpdateConsumer(ctx, "ORCHESTRATOR", jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: fmt.Sprintf("orchestrator.%s", eventType),
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	_, err = consumer.Consume(func(msg jetstream.Msg) {
		var payload map[string]interface{}
		if err := json.Unmarshal(msg.Data(), &payload); err != nil {
			s.logger.Error("notification", "undecodable event payload", map[string]interface{}{
				"subject": msg.Subject(),
				"error":   err.Error(),
			})
			_ = msg.Nak()
			return
		}
		if err := handler(context.Background(), payload); err != nil {
			s.logger.Warn("notification", "event handler failed, requeueing", map[string]interface{}{
				"subject": msg.Subject(),
				"error":   err.Error(),
			})
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}
	return nil
}

func (s *NatsSubscriber) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
