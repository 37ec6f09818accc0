package config

import "time"

const (
	// Backend
	DefaultAPIURL         = "https://arlande-api.mababa.app"
	DefaultRequestTimeout = 30 * time.Second

	// Chat
	DefaultChatTransport   = TransportWebSocket
	DefaultChatJoinTimeout = 10 * time.Second
	ChatSendBuffer         = 256
	ChatInboundBuffer      = 256
	ChatEventBuffer        = 64

	// WebSocket pumps
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 4096

	// Redis rooms
	RoomChannelPrefix = "complaint:"

	// Loopback transport
	DefaultAutoReplyDelay = 1500 * time.Millisecond
	DefaultAutoReply      = "Thanks, an agent is looking into your complaint."

	// Preferences
	DefaultPrefsFile = "complaintdesk-prefs.yaml"
)

// Chat transport names accepted by CHAT_TRANSPORT.
const (
	TransportWebSocket = "websocket"
	TransportRedis     = "redis"
	TransportLoopback  = "loopback"
)
