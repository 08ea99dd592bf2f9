package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ai-accelerator-be/internal/pkg/logger"
)

// TaskHandler processes one dequeued payload.
type TaskHandler func(ctx context.Context, payload []byte) error

// Manager drives worker goroutines over a TaskQueue. A worker that returns
// from its loop while the manager is still running is restarted by the
// supervisor.
type Manager struct {
	queue   TaskQueue
	handler TaskHandler
	workers int
	logger  logger.ILogger

	running   atomic.Bool
	wg        sync.WaitGroup
	idleSleep time.Duration
}

func NewManager(q TaskQueue, handler TaskHandler, workers int, log logger.ILogger) *Manager {
	if workers <= 0 {
		workers = 1
	}
	return &Manager{
		queue:     q,
		handler:   handler,
		workers:   workers,
		logger:    log,
		idleSleep: time.Second,
	}
}

func (m *Manager) Start(ctx context.Context) {
	if !m.running.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.supervise(ctx, i)
	}
}

// Stop clears the running flag; workers drain their current task and exit.
func (m *Manager) Stop() {
	m.running.Store(false)
	m.wg.Wait()
}

func (m *Manager) supervise(ctx context.Context, workerID int) {
	defer m.wg.Done()
	for m.running.Load() && ctx.Err() == nil {
		m.runWorker(ctx, workerID)
		if m.running.Load() && ctx.Err() == nil {
			m.logger.Warn("queue_manager", "worker exited unexpectedly, restarting", map[string]interface{}{
				"worker_id": workerID,
			})
		}
	}
}

func (m *Manager) runWorker(ctx context.Context, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("queue_manager", "worker panicked", map[string]interface{}{
				"worker_id": workerID,
				"panic":     r,
			})
		}
	}()

	for m.running.Load() && ctx.Err() == nil {
		payload, err := m.queue.Dequeue(ctx)
		if err != nil {
			m.logger.Error("queue_manager", "dequeue failed", map[string]interface{}{
				"worker_id": workerID,
				"error":     err,
			})
			m.sleep(ctx)
			continue
		}
		if payload == nil {
			m.sleep(ctx)
			continue
		}
		if err := m.handler(ctx, payload); err != nil {
			m.logger.Error("queue_manager", "task handler failed", map[string]interface{}{
				"worker_id": workerID,
				"error":     err,
			})
		}
	}
}

func (m *Manager) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.idleSleep):
	}
}
