package models

import "time"

// Sender says who wrote a chat message.
type Sender string

const (
	SenderUser     Sender = "user"
	SenderEmployee Sender = "employee"
)

// ChatMessage is one entry of a complaint's conversation log.
type ChatMessage struct {
	ComplaintID ComplaintID `json:"complaintId"`
	Sender      Sender      `json:"sender"`
	Text        string      `json:"text"`
	// Timestamp is client-assigned for local messages, server-assigned otherwise.
	Timestamp time.Time `json:"timestamp"`
	// Nonce is generated for locally sent messages so the transport's echo
	// of the same message can be recognised.
	Nonce string `json:"nonce,omitempty"`
}

// Chat envelope events.
const (
	EventJoinRoom  = "joinRoom"
	EventLeaveRoom = "leaveRoom"
	EventMessage   = "message"
)

// Envelope is the JSON frame exchanged with the realtime channel.
type Envelope struct {
	Event       string      `json:"event"`
	ComplaintID ComplaintID `json:"complaintId"`
	Text        string      `json:"text,omitempty"`
	Sender      Sender      `json:"sender,omitempty"`
	Nonce       string      `json:"nonce,omitempty"`
	Timestamp   *time.Time  `json:"timestamp,omitempty"`
}

// MessageEnvelope wraps msg for the wire.
func MessageEnvelope(msg ChatMessage) Envelope {
	env := Envelope{
		Event:       EventMessage,
		ComplaintID: msg.ComplaintID,
		Text:        msg.Text,
		Sender:      msg.Sender,
		Nonce:       msg.Nonce,
	}
	if !msg.Timestamp.IsZero() {
		ts := msg.Timestamp
		env.Timestamp = &ts
	}
	return env
}

// Message converts a message envelope back into a ChatMessage.
// A missing timestamp is filled with received.
func (e Envelope) Message(received time.Time) ChatMessage {
	msg := ChatMessage{
		ComplaintID: e.ComplaintID,
		Sender:      e.Sender,
		Text:        e.Text,
		Nonce:       e.Nonce,
		Timestamp:   received,
	}
	if e.Timestamp != nil && !e.Timestamp.IsZero() {
		msg.Timestamp = *e.Timestamp
	}
	if msg.Sender == "" {
		msg.Sender = SenderEmployee
	}
	return msg
}
