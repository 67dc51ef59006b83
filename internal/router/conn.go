package router

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrNotInRoom          = errors.New("connection has not joined a room")
	ErrChannelClosed      = errors.New("channel closed")
	ErrSendQueueFull      = errors.New("send queue full")
)

const (
	sendQueueSize = 64
	writeTimeout  = 10 * time.Second
)

// Channel is the write side of a persistent bidirectional connection.
// *websocket.Conn satisfies it.
type Channel interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type outbound struct {
	messageType int
	data        []byte
}

// Conn wraps a channel with an identity, room membership and a buffered send
// queue drained by a single write pump, so fan-out never blocks on a slow
// recipient. Close is idempotent.
type Conn struct {
	ID       string
	JoinedAt time.Time

	// membership, guarded by the router's lock
	room          string
	meetingID     string
	participantID string

	ch     Channel
	sendCh chan outbound
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
}

// newConn wraps a channel and starts its write pump
func newConn(id string, ch Channel) *Conn {
	c := &Conn{
		ID:       id,
		JoinedAt: time.Now(),
		ch:       ch,
		sendCh:   make(chan outbound, sendQueueSize),
		done:     make(chan struct{}),
	}
	go c.writePump()
	return c
}

// Send enqueues a payload for delivery. It never blocks: a closed connection
// or a full queue returns an error immediately and the payload is dropped.
func (c *Conn) Send(messageType int, data []byte) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}

	select {
	case c.sendCh <- outbound{messageType: messageType, data: data}:
		return nil
	case <-c.done:
		return ErrChannelClosed
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the write pump and the underlying channel. Safe to call
// from multiple goroutines; only the first call has an effect.
func (c *Conn) Close() {
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.done)
		_ = c.ch.Close()
	})
}

// Closed reports whether the connection has been closed
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

func (c *Conn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.sendCh:
			_ = c.ch.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ch.WriteMessage(msg.messageType, msg.data); err != nil {
				c.Close()
				return
			}
		}
	}
}
