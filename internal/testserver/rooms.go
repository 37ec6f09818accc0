package testserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"complaintdesk/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// peer is one websocket connection. Writes are serialized by mu.
type peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
	room models.ComplaintID
}

func (p *peer) write(env models.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return p.conn.WriteJSON(env)
}

func (s *Server) serveWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Failed to upgrade connection"})
		return
	}

	p := &peer{conn: conn}
	defer func() {
		s.leave(p)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}

		switch env.Event {
		case models.EventJoinRoom:
			s.join(p, env.ComplaintID)
			// The join is acknowledged by echoing the envelope.
			if err := p.write(models.Envelope{Event: models.EventJoinRoom, ComplaintID: env.ComplaintID}); err != nil {
				return
			}
		case models.EventLeaveRoom:
			s.leave(p)
		case models.EventMessage:
			if p.room == "" {
				continue
			}
			if env.Timestamp == nil {
				now := s.now().UTC()
				env.Timestamp = &now
			}
			s.broadcast(p.room, env, p)
		}
	}
}

func (s *Server) join(p *peer, id models.ComplaintID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.room != "" {
		delete(s.rooms[p.room], p)
	}
	p.room = id
	if s.rooms[id] == nil {
		s.rooms[id] = make(map[*peer]struct{})
	}
	s.rooms[id][p] = struct{}{}
}

func (s *Server) leave(p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.room == "" {
		return
	}
	delete(s.rooms[p.room], p)
	if len(s.rooms[p.room]) == 0 {
		delete(s.rooms, p.room)
	}
	p.room = ""
}

func (s *Server) broadcast(room models.ComplaintID, env models.Envelope, from *peer) {
	s.mu.Lock()
	targets := make([]*peer, 0, len(s.rooms[room]))
	for member := range s.rooms[room] {
		if member == from && !s.echoSender {
			continue
		}
		targets = append(targets, member)
	}
	s.mu.Unlock()

	for _, member := range targets {
		_ = member.write(env)
	}
}

// Say delivers an employee message to everyone in the complaint's room.
func (s *Server) Say(id models.ComplaintID, text string) {
	now := s.now().UTC()
	s.broadcast(id, models.Envelope{
		Event:       models.EventMessage,
		ComplaintID: id,
		Text:        text,
		Sender:      models.SenderEmployee,
		Timestamp:   &now,
	}, nil)
}

// RoomSize reports how many connections have joined id.
func (s *Server) RoomSize(id models.ComplaintID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms[id])
}

// DropRoom closes every connection in the complaint's room.
func (s *Server) DropRoom(id models.ComplaintID) {
	s.mu.Lock()
	members := make([]*peer, 0, len(s.rooms[id]))
	for member := range s.rooms[id] {
		members = append(members, member)
	}
	s.mu.Unlock()

	for _, member := range members {
		member.conn.Close()
	}
}
