package bus

import "context"

// MessageHandler receives one published payload. Handler errors are logged by
// the subscriber loop, never fatal.
type MessageHandler func(ctx context.Context, channel string, payload []byte) error

// Publisher fans payloads out to channel subscribers.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Close() error
}

// Subscriber runs a background listener over one or more channels.
type Subscriber interface {
	Subscribe(ctx context.Context, channels []string, handler MessageHandler) error
	Close() error
}

// Bus is both halves on one transport.
type Bus interface {
	Publisher
	Subscriber
}
