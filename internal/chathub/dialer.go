package chathub

import (
	"fmt"

	"complaintdesk/backend/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewDialer builds the transport selected by cfg.ChatTransport. The returned
// release func frees what the dialer holds; it is never nil.
func NewDialer(cfg *config.Config, token func() string, log *zap.Logger) (Dialer, func() error, error) {
	noop := func() error { return nil }

	switch cfg.ChatTransport {
	case config.TransportWebSocket:
		return &WebSocketDialer{URL: cfg.ChatURL, Token: token, Log: log}, noop, nil

	case config.TransportRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		return &RedisDialer{Client: client, Log: log}, client.Close, nil

	case config.TransportLoopback:
		return NewLoopbackDialer(), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown chat transport %q", cfg.ChatTransport)
}
