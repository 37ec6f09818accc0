// Package chathub runs the live chat attached to a complaint: the session
// state machine, the manager that keeps one session open at a time, and the
// transports that carry messages to and from the complaint's room.
package chathub

import (
	"context"
	"errors"
	"sync"

	"complaintdesk/backend/internal/config"
	"complaintdesk/backend/internal/models"
)

var (
	// ErrConnClosed is returned by Send after the conn has ended.
	ErrConnClosed = errors.New("chat connection closed")
	// ErrSendBufferFull is returned by Send when the outbound queue is full.
	ErrSendBufferFull = errors.New("chat send buffer full")
	// errRemoteClosed is reported when the room ends without a transport error.
	errRemoteClosed = errors.New("chat room closed by remote")
)

// Conn is a joined complaint room.
type Conn interface {
	// Send queues msg for delivery. It never blocks.
	Send(msg models.ChatMessage) error
	// Incoming yields messages from the room in arrival order. It is closed
	// when the conn ends for any reason.
	Incoming() <-chan models.ChatMessage
	// Err reports why the conn ended. It is nil after a local Close.
	Err() error
	// Close leaves the room and releases the transport. Safe to call twice.
	Close() error
}

// Dialer joins the room of a complaint. Dial returns once the transport has
// confirmed the join, or with an error when ctx ends first.
type Dialer interface {
	Dial(ctx context.Context, id models.ComplaintID) (Conn, error)
}

// pipe is the receive half shared by the transports. Exactly one goroutine
// delivers into in and closes it.
type pipe struct {
	in   chan models.ChatMessage
	done chan struct{}
	once sync.Once

	mu  sync.Mutex
	err error
}

func newPipe() *pipe {
	return &pipe{
		in:   make(chan models.ChatMessage, config.ChatInboundBuffer),
		done: make(chan struct{}),
	}
}

func (p *pipe) Incoming() <-chan models.ChatMessage { return p.in }

func (p *pipe) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// deliver hands msg to the reader unless the conn has ended.
func (p *pipe) deliver(msg models.ChatMessage) bool {
	select {
	case p.in <- msg:
		return true
	case <-p.done:
		return false
	}
}

// finish ends the conn. The first call wins; err is nil for a local close.
func (p *pipe) finish(err error) bool {
	first := false
	p.once.Do(func() {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
		first = true
	})
	return first
}

func (p *pipe) ended() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// queue pushes v onto out without blocking.
func queue[T any](p *pipe, out chan T, v T) error {
	if p.ended() {
		return ErrConnClosed
	}
	select {
	case out <- v:
		return nil
	case <-p.done:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}
