package ws

import (
	"context"
	"errors"
	"sync"
)

const sendBufferSize = 256

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
	ErrAlreadyPrimed    = errors.New("connection already primed")
)

// Connection is the server side of one player websocket. Frames sent before
// Prime is called are held back so catch-up frames always go out first.
// Catch-up frames sit in an unbounded backlog the write pump empties before
// it reads live frames from send, so a long queue is never cut short.
type Connection struct {
	ID         string
	RoomID     string
	PlayerName string

	send chan []byte
	done chan struct{}
	wake chan struct{}

	mu          sync.Mutex
	primed      bool
	held        [][]byte
	backlog     [][]byte
	closed      bool
	closeReason string
}

func NewConnection(id, roomID, playerName string) *Connection {
	return &Connection{
		ID:         id,
		RoomID:     roomID,
		PlayerName: playerName,
		send:       make(chan []byte, sendBufferSize),
		done:       make(chan struct{}),
		wake:       make(chan struct{}, 1),
	}
}

// Send queues data for the write pump without blocking.
func (c *Connection) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	if !c.primed {
		if len(c.held) >= sendBufferSize {
			return ErrSendBufferFull
		}
		c.held = append(c.held, data)
		return nil
	}
	return c.enqueueLocked(data)
}

func (c *Connection) enqueueLocked(data []byte) error {
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Prime hands the catch-up frames to the write pump, followed by anything
// held back, and switches the connection to live delivery.
func (c *Connection) Prime(frames [][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	if c.primed {
		return ErrAlreadyPrimed
	}
	c.backlog = make([][]byte, 0, len(frames)+len(c.held))
	c.backlog = append(append(c.backlog, frames...), c.held...)
	c.held = nil
	c.primed = true

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// nextBacklog pops the oldest catch-up frame.
func (c *Connection) nextBacklog() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.backlog) == 0 {
		return nil, false
	}
	f := c.backlog[0]
	c.backlog[0] = nil
	c.backlog = c.backlog[1:]
	return f, true
}

// Close asks the write pump to send a close frame carrying reason and stop.
func (c *Connection) Close(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.closeReason = reason
	close(c.done)
	return nil
}

func (c *Connection) reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeReason
}
