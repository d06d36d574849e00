package session

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed reports a send or receive on a closed connection.
var ErrClosed = errors.New("session: connection closed")

// Conn is one end of a duplex message channel. Messages are delivered
// at most once and in send order per direction; there is no ordering
// guarantee across directions.
type Conn struct {
	out       chan<- []byte
	in        <-chan []byte
	closed    chan struct{}
	closeOnce *sync.Once
}

// NewPipe creates a connected pair of in-memory connections, one for
// the surface and one for the sandbox. Buffer sets the per-direction
// channel capacity.
func NewPipe(buffer int) (surface, sandbox *Conn) {
	if buffer < 0 {
		buffer = 0
	}
	toSandbox := make(chan []byte, buffer)
	toSurface := make(chan []byte, buffer)
	closed := make(chan struct{})
	once := &sync.Once{}

	surface = &Conn{out: toSandbox, in: toSurface, closed: closed, closeOnce: once}
	sandbox = &Conn{out: toSurface, in: toSandbox, closed: closed, closeOnce: once}
	return surface, sandbox
}

// Send copies data and queues it for the peer. It blocks until the
// message is queued, the context is done, or the pipe is closed.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	msg := append([]byte{}, data...)
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrClosed
	}
}

// Recv blocks until a message arrives, the context is done, or the
// pipe is closed with no messages left.
func (c *Conn) Recv(ctx context.Context) ([]byte, error) {
	select {
	case msg, ok := <-c.in:
		if !ok {
			return nil, ErrClosed
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		// Drain anything already queued before reporting closure.
		select {
		case msg := <-c.in:
			return msg, nil
		default:
			return nil, ErrClosed
		}
	}
}

// Close shuts down both directions. Safe to call from either end;
// subsequent calls are no-ops.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}
