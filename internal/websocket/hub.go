package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/internal/pkg/logger"
	"ai-accelerator-be/pkg/bus"
)

// FrameHandler reacts to one routed orchestrator frame before it is written
// to the client (citation rewriting, dialog persistence).
type FrameHandler func(ctx context.Context, conn *Connection, frame *dto.ChatResponse)

// Hub indexes live connections by connection id and routes response-channel
// frames to them.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	logger logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		conns:  make(map[string]*Connection),
		logger: log,
	}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.mu.Unlock()
	h.logger.Info("hub", "connection registered", map[string]interface{}{
		"connection_id": conn.ID,
		"scenario":      conn.Scenario,
	})
}

func (h *Hub) Unregister(connectionID string) {
	h.mu.Lock()
	delete(h.conns, connectionID)
	h.mu.Unlock()
	h.logger.Info("hub", "connection unregistered", map[string]interface{}{
		"connection_id": connectionID,
	})
}

func (h *Hub) Get(connectionID string) (*Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[connectionID]
	return conn, ok
}

// CloseAll tears down every connection, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = make(map[string]*Connection)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close(CloseShutdown, "server shutting down")
	}
}

// Listen subscribes to the response channel and fans frames out to their
// connections. Frames for unknown connections are dropped with a log line.
func (h *Hub) Listen(ctx context.Context, subscriber bus.Subscriber, channel string, handler FrameHandler) error {
	return subscriber.Subscribe(ctx, []string{channel}, func(ctx context.Context, _ string, payload []byte) error {
		var frame dto.ChatResponse
		if err := json.Unmarshal(payload, &frame); err != nil {
			h.logger.Error("hub", "undecodable response frame", map[string]interface{}{"error": err})
			return nil
		}

		conn, ok := h.Get(frame.ConnectionID)
		if !ok {
			h.logger.Warn("hub", "frame for unknown connection dropped", map[string]interface{}{
				"connection_id": frame.ConnectionID,
				"dialog_id":     frame.DialogID,
			})
			return nil
		}

		if handler != nil {
			handler(ctx, conn, &frame)
		}
		if err := conn.Send(&frame); err != nil {
			h.logger.Warn("hub", "frame delivery failed", map[string]interface{}{
				"connection_id": conn.ID,
				"error":         err.Error(),
			})
		}
		return nil
	})
}
