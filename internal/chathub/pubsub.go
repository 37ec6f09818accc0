package chathub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"complaintdesk/backend/internal/config"
	"complaintdesk/backend/internal/logging"
	"complaintdesk/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RoomChannel is the pub/sub channel carrying a complaint's chat.
func RoomChannel(id models.ComplaintID) string {
	return config.RoomChannelPrefix + string(id)
}

// RedisDialer uses Redis pub/sub as the room transport: joining is
// subscribing to the complaint's channel and sending is publishing to it.
type RedisDialer struct {
	Client redis.UniversalClient
	Log    *zap.Logger
}

func (d *RedisDialer) Dial(ctx context.Context, id models.ComplaintID) (Conn, error) {
	channel := RoomChannel(id)
	ps := d.Client.Subscribe(ctx, channel)

	// The first reply is the subscription confirmation.
	reply, err := ps.Receive(ctx)
	if err != nil {
		ps.Close()
		return nil, err
	}
	if _, ok := reply.(*redis.Subscription); !ok {
		ps.Close()
		return nil, fmt.Errorf("unexpected reply %T while subscribing to %s", reply, channel)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &redisConn{
		pipe:    newPipe(),
		id:      id,
		channel: channel,
		client:  d.Client,
		ps:      ps,
		out:     make(chan models.Envelope, config.ChatSendBuffer),
		ctx:     runCtx,
		cancel:  cancel,
		log:     logging.OrNop(d.Log).With(zap.String("channel", channel)),
	}
	go c.listen()
	go c.publish()

	c.log.Debug("subscribed to chat room")
	return c, nil
}

type redisConn struct {
	*pipe

	id      models.ComplaintID
	channel string
	client  redis.UniversalClient
	ps      *redis.PubSub
	out     chan models.Envelope

	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

func (c *redisConn) Send(msg models.ChatMessage) error {
	return queue(c.pipe, c.out, models.MessageEnvelope(msg))
}

func (c *redisConn) Close() error {
	if !c.finish(nil) {
		return nil
	}
	c.cancel()
	return c.ps.Close()
}

// fail ends the conn after a transport error.
func (c *redisConn) fail(err error) {
	if c.finish(err) {
		c.log.Warn("chat subscription lost", zap.Error(err))
		c.cancel()
		c.ps.Close()
	}
}

func (c *redisConn) listen() {
	defer close(c.in)

	for {
		m, err := c.ps.ReceiveMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil {
				c.fail(err)
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
			c.log.Warn("dropping undecodable chat payload", zap.Error(err))
			continue
		}
		if env.Event != models.EventMessage {
			continue
		}
		if env.ComplaintID == "" {
			env.ComplaintID = c.id
		}
		if !c.deliver(env.Message(time.Now())) {
			return
		}
	}
}

func (c *redisConn) publish() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case env := <-c.out:
			if env.Timestamp == nil {
				now := time.Now().UTC()
				env.Timestamp = &now
			}
			payload, err := json.Marshal(env)
			if err != nil {
				c.log.Error("failed to encode chat message", zap.Error(err))
				continue
			}
			if err := c.client.Publish(c.ctx, c.channel, payload).Err(); err != nil {
				if c.ctx.Err() == nil {
					c.fail(err)
				}
				return
			}
		}
	}
}
