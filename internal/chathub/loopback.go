package chathub

import (
	"context"
	"sync"
	"time"

	"complaintdesk/backend/internal/config"
	"complaintdesk/backend/internal/models"
)

// LoopbackDialer is an in-process transport with no server behind it.
// It stands in for staff with an optional scripted reply and is what tests
// and offline demos use.
type LoopbackDialer struct {
	// AutoReply, when set, is answered by an employee ReplyDelay after each send.
	AutoReply  string
	ReplyDelay time.Duration
	// Echo delivers every sent message back, as a server relay would.
	Echo bool
	// JoinDelay holds Dial back before the join is confirmed.
	JoinDelay time.Duration
	// Fail, when set, makes Dial return it.
	Fail error

	mu    sync.Mutex
	conns []*LoopbackConn
}

// NewLoopbackDialer returns a dialer that answers every message with the
// default auto reply.
func NewLoopbackDialer() *LoopbackDialer {
	return &LoopbackDialer{
		AutoReply:  config.DefaultAutoReply,
		ReplyDelay: config.DefaultAutoReplyDelay,
	}
}

func (d *LoopbackDialer) Dial(ctx context.Context, id models.ComplaintID) (Conn, error) {
	if d.Fail != nil {
		return nil, d.Fail
	}
	if d.JoinDelay > 0 {
		t := time.NewTimer(d.JoinDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c := &LoopbackConn{
		pipe:       newPipe(),
		id:         id,
		out:        make(chan models.ChatMessage, config.ChatSendBuffer),
		inject:     make(chan models.ChatMessage),
		echo:       d.Echo,
		autoReply:  d.AutoReply,
		replyDelay: d.ReplyDelay,
	}
	go c.run()

	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

// Last returns the most recently dialed conn, or nil.
func (d *LoopbackDialer) Last() *LoopbackConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// LoopbackConn is a conn created by LoopbackDialer.
type LoopbackConn struct {
	*pipe

	id         models.ComplaintID
	out        chan models.ChatMessage
	inject     chan models.ChatMessage
	echo       bool
	autoReply  string
	replyDelay time.Duration

	sentMu sync.Mutex
	sent   []models.ChatMessage
}

func (c *LoopbackConn) Send(msg models.ChatMessage) error {
	if err := queue(c.pipe, c.out, msg); err != nil {
		return err
	}
	c.sentMu.Lock()
	c.sent = append(c.sent, msg)
	c.sentMu.Unlock()
	return nil
}

func (c *LoopbackConn) Close() error {
	c.finish(nil)
	return nil
}

// Sent returns what has been handed to Send so far.
func (c *LoopbackConn) Sent() []models.ChatMessage {
	c.sentMu.Lock()
	defer c.sentMu.Unlock()
	return append([]models.ChatMessage(nil), c.sent...)
}

// Say delivers a message from staff into the room.
func (c *LoopbackConn) Say(text string) bool {
	return c.Inject(models.ChatMessage{
		ComplaintID: c.id,
		Sender:      models.SenderEmployee,
		Text:        text,
		Timestamp:   time.Now(),
	})
}

// Inject delivers msg as if it came from the room.
func (c *LoopbackConn) Inject(msg models.ChatMessage) bool {
	select {
	case c.inject <- msg:
		return true
	case <-c.done:
		return false
	}
}

// Drop ends the conn as a transport failure would.
func (c *LoopbackConn) Drop(err error) {
	if err == nil {
		err = errRemoteClosed
	}
	c.finish(err)
}

func (c *LoopbackConn) run() {
	defer close(c.in)

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.out:
			if c.echo {
				c.deliver(msg)
			}
			if c.autoReply != "" {
				time.AfterFunc(c.replyDelay, func() { c.Say(c.autoReply) })
			}
		case msg := <-c.inject:
			c.deliver(msg)
		}
	}
}
