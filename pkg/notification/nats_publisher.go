package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-accelerator-be/internal/pkg/logger"
	"ai-accelerator-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NatsPublisher sends orchestrator lifecycle events to the NATS bus so
// post-call consumers (analytics, alerting) can react out of band.
type NatsPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger logger.ILogger
}

func NewNatsPublisher(url string, log logger.ILogger) (*NatsPublisher, error) {
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "ORCHESTRATOR",
		Subjects:  []string{"orchestrator.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
	})
	if err != nil {
		log.Warn("notification", "failed to ensure ORCHESTRATOR stream", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return &NatsPublisher{nc: nc, js: js, logger: log}, nil
}

// Publish sends an event under orchestrator.<event_type>.
func (p *NatsPublisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	subject := fmt.Sprintf("orchestrator.%s", event.EventType())
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}
	return nil
}

func (p *NatsPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
