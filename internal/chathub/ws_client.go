package chathub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"complaintdesk/backend/internal/config"
	"complaintdesk/backend/internal/logging"
	"complaintdesk/backend/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketDialer joins complaint rooms on the backend's websocket endpoint.
type WebSocketDialer struct {
	URL string
	// Token returns the bearer token sent with the handshake.
	Token  func() string
	Dialer *websocket.Dialer
	Log    *zap.Logger
}

func (d *WebSocketDialer) Dial(ctx context.Context, id models.ComplaintID) (Conn, error) {
	log := logging.OrNop(d.Log)
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := http.Header{}
	if d.Token != nil {
		if token := d.Token(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	ws, resp, err := dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}

	if err := joinRoom(ctx, ws, id); err != nil {
		ws.Close()
		return nil, err
	}

	c := &wsConn{
		pipe: newPipe(),
		id:   id,
		ws:   ws,
		send: make(chan models.Envelope, config.ChatSendBuffer),
		log:  log.With(zap.String("complaint_id", string(id))),
	}
	go c.writePump()
	go c.readPump()

	c.log.Debug("joined chat room", zap.String("url", d.URL))
	return c, nil
}

// joinRoom announces the complaint and waits for the server's echo of the
// join envelope.
func joinRoom(ctx context.Context, ws *websocket.Conn, id models.ComplaintID) error {
	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		ws.SetWriteDeadline(deadline)
		ws.SetReadDeadline(deadline)
	}

	if err := ws.WriteJSON(models.Envelope{Event: models.EventJoinRoom, ComplaintID: id}); err != nil {
		return joinErr(ctx, err)
	}

	for {
		var env models.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			return joinErr(ctx, err)
		}
		if env.Event == models.EventJoinRoom && env.ComplaintID == id {
			ws.SetWriteDeadline(time.Time{})
			return nil
		}
	}
}

func joinErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

type wsConn struct {
	*pipe

	id   models.ComplaintID
	ws   *websocket.Conn
	send chan models.Envelope
	log  *zap.Logger
}

func (c *wsConn) Send(msg models.ChatMessage) error {
	return queue(c.pipe, c.send, models.MessageEnvelope(msg))
}

// Close ends the conn; writePump says goodbye and closes the socket.
func (c *wsConn) Close() error {
	c.finish(nil)
	return nil
}

// readPump decodes room frames into Incoming until the socket fails.
func (c *wsConn) readPump() {
	defer func() {
		close(c.in)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(config.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if c.finish(err) {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					c.log.Warn("chat connection lost", zap.Error(err))
				} else {
					c.log.Info("chat connection closed by server", zap.Error(err))
				}
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Warn("dropping undecodable chat frame", zap.Error(err))
			continue
		}
		if env.Event != models.EventMessage {
			continue
		}
		if env.ComplaintID != "" && env.ComplaintID != c.id {
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

// writePump writes queued envelopes and keeps the socket alive with pings.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case env := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.ws.WriteJSON(env); err != nil {
				c.log.Warn("failed to write chat message", zap.Error(err))
				c.finish(err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.finish(err)
				return
			}

		case <-c.done:
			if c.Err() != nil {
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(config.WriteWait))
			_ = c.ws.WriteJSON(models.Envelope{Event: models.EventLeaveRoom, ComplaintID: c.id})
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
