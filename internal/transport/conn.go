// Package transport carries protocol lines between the panel and its
// controller.
package transport

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrClosed       = errors.New("connection closed")
	ErrNotConnected = errors.New("not connected")
)

// Conn is a line-oriented link to a controller. One Receive returns one
// inbound message.
type Conn interface {
	Receive(ctx context.Context) (string, error)
	Send(ctx context.Context, msg string) error
	Close() error
}

// PipeEnd is one side of an in-memory Conn pair.
type PipeEnd struct {
	in     <-chan string
	out    chan<- string
	closed chan struct{}
	once   *sync.Once
}

// Pipe returns two connected ends. Messages sent on one are received on
// the other, in order. Closing either end closes both.
func Pipe() (*PipeEnd, *PipeEnd) {
	ab := make(chan string, 64)
	ba := make(chan string, 64)
	closed := make(chan struct{})
	once := new(sync.Once)
	a := &PipeEnd{in: ba, out: ab, closed: closed, once: once}
	b := &PipeEnd{in: ab, out: ba, closed: closed, once: once}
	return a, b
}

// Receive implements Conn.
func (p *PipeEnd) Receive(ctx context.Context) (string, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.closed:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Send implements Conn.
func (p *PipeEnd) Send(ctx context.Context, msg string) error {
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	select {
	case p.out <- msg:
		return nil
	case <-p.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements Conn.
func (p *PipeEnd) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}
