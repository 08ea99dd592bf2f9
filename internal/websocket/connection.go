package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"ai-accelerator-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
)

const writeWait = 10 * time.Second

// Close codes sent on teardown.
const (
	CloseNormal   = websocket.CloseNormalClosure // client-initiated
	CloseShutdown = websocket.CloseGoingAway     // server shutdown
)

// Wire is the subset of the websocket connection the supervisor drives.
type Wire interface {
	ReadMessage() (messageType int, payload []byte, err error)
	WriteMessage(messageType int, payload []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Connection supervises one websocket client: an unbounded inbound queue
// with a single consumer, serialized writes and a per-turn timeout driver.
type Connection struct {
	ID       string
	Scenario string
	UserID   string

	conn   Wire
	state  atomic.Int32
	logger logger.ILogger

	queueMu   sync.Mutex
	queueCond *sync.Cond
	queue     [][]byte
	closed    bool

	writeMu sync.Mutex

	timerMu   sync.Mutex
	turnTimer *time.Timer
}

func NewConnection(id, scenario string, conn Wire, log logger.ILogger) *Connection {
	c := &Connection{
		ID:       id,
		Scenario: scenario,
		conn:     conn,
		logger:   log,
	}
	c.queueCond = sync.NewCond(&c.queueMu)
	c.state.Store(int32(StateNew))
	c.transition(StateUpgraded)
	return c
}

func (c *Connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

func (c *Connection) transition(to ConnectionState) bool {
	for {
		from := ConnectionState(c.state.Load())
		if from == to {
			return true
		}
		if !validTransition(from, to) {
			return false
		}
		if c.state.CompareAndSwap(int32(from), int32(to)) {
			return true
		}
	}
}

// Run reads frames into the inbound queue and consumes them serially with
// onMessage until the peer disconnects. Blocks until teardown finishes.
func (c *Connection) Run(ctx context.Context, onMessage func(ctx context.Context, conn *Connection, payload []byte)) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.consume(ctx, onMessage)
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.enqueue(payload)
	}

	c.transition(StateClosing)
	c.closeQueue()
	<-done
	c.StopTurnTimer()
	c.transition(StateClosed)
}

func (c *Connection) enqueue(payload []byte) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if c.closed {
		return
	}
	c.queue = append(c.queue, payload)
	c.queueCond.Signal()
}

func (c *Connection) closeQueue() {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	c.closed = true
	c.queueCond.Broadcast()
}

func (c *Connection) consume(ctx context.Context, onMessage func(ctx context.Context, conn *Connection, payload []byte)) {
	for {
		c.queueMu.Lock()
		for len(c.queue) == 0 && !c.closed {
			c.queueCond.Wait()
		}
		if len(c.queue) == 0 && c.closed {
			c.queueMu.Unlock()
			return
		}
		payload := c.queue[0]
		c.queue = c.queue[1:]
		c.queueMu.Unlock()

		c.transition(StateStreaming)
		onMessage(ctx, c, payload)
	}
}

// Send writes one JSON frame. Safe for concurrent use.
func (c *Connection) Send(frame interface{}) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.State() >= StateClosing {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// StartTurnTimer arms the response timeout for the active turn. A previous
// timer is replaced.
func (c *Connection) StartTurnTimer(d time.Duration, onTimeout func()) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.turnTimer != nil {
		c.turnTimer.Stop()
	}
	c.turnTimer = time.AfterFunc(d, onTimeout)
}

func (c *Connection) StopTurnTimer() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.turnTimer != nil {
		c.turnTimer.Stop()
		c.turnTimer = nil
	}
}

// Close sends a close frame and tears the connection down.
func (c *Connection) Close(code int, reason string) {
	if !c.transition(StateClosing) {
		return
	}
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	c.writeMu.Unlock()
	_ = c.conn.Close()
}
