package queue

import "context"

// TaskQueue is a FIFO byte-payload queue decoupling the gateway from the
// orchestrator workers. Dequeue is non-blocking and returns nil when empty.
type TaskQueue interface {
	Enqueue(ctx context.Context, payload []byte) error
	Dequeue(ctx context.Context) ([]byte, error)
	Size(ctx context.Context) (int64, error)
	IsEmpty(ctx context.Context) (bool, error)
	Clear(ctx context.Context) error
	Close() error
}
