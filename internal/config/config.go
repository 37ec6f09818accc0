// Package config loads client configuration from an optional YAML file,
// a .env file and the process environment, in that order of precedence
// (environment wins).
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all client configuration.
type Config struct {
	// APIURL is the REST backend base URL.
	APIURL string `yaml:"api_url"`
	// ChatURL is the websocket endpoint; derived from APIURL when empty.
	ChatURL string `yaml:"chat_url"`
	// ChatTransport selects websocket, redis or loopback.
	ChatTransport string `yaml:"chat_transport"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`

	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ChatJoinTimeout time.Duration `yaml:"chat_join_timeout"`

	// Token is a bearer token to start with (skips login).
	Token string `yaml:"token"`

	LogLevel    string `yaml:"log_level"`
	Development bool   `yaml:"development"`

	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   int64  `yaml:"telegram_chat_id"`

	PrefsPath string `yaml:"prefs_path"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		APIURL:          DefaultAPIURL,
		ChatTransport:   DefaultChatTransport,
		RequestTimeout:  DefaultRequestTimeout,
		ChatJoinTimeout: DefaultChatJoinTimeout,
		LogLevel:        "info",
		PrefsPath:       DefaultPrefsFile,
	}
}

// Load builds the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("COMPLAINTDESK_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if cfg.ChatURL == "" {
		chatURL, err := DeriveChatURL(cfg.APIURL)
		if err != nil {
			return nil, err
		}
		cfg.ChatURL = chatURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.APIURL = getEnvOrDefault("API_URL", c.APIURL)
	c.ChatURL = getEnvOrDefault("CHAT_URL", c.ChatURL)
	c.ChatTransport = strings.ToLower(getEnvOrDefault("CHAT_TRANSPORT", c.ChatTransport))
	c.RedisAddr = getEnvOrDefault("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", c.RedisPassword)
	c.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", c.RequestTimeout)
	c.ChatJoinTimeout = getEnvDuration("CHAT_JOIN_TIMEOUT", c.ChatJoinTimeout)
	c.Token = getEnvOrDefault("COMPLAINTDESK_TOKEN", c.Token)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.Development = c.Development || os.Getenv("ENV") == "development"
	c.TelegramBotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", c.TelegramBotToken)
	c.TelegramChatID = getEnvInt64("TELEGRAM_CHAT_ID", c.TelegramChatID)
	c.PrefsPath = getEnvOrDefault("PREFS_PATH", c.PrefsPath)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("API_URL cannot be empty")
	}
	if _, err := url.ParseRequestURI(c.APIURL); err != nil {
		return fmt.Errorf("API_URL is not a valid URL: %w", err)
	}
	switch c.ChatTransport {
	case TransportWebSocket:
		if c.ChatURL == "" {
			return fmt.Errorf("CHAT_URL cannot be empty for the websocket transport")
		}
	case TransportRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis transport")
		}
	case TransportLoopback:
	default:
		return fmt.Errorf("unknown CHAT_TRANSPORT %q", c.ChatTransport)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.ChatJoinTimeout <= 0 {
		return fmt.Errorf("CHAT_JOIN_TIMEOUT must be positive")
	}
	if (c.TelegramBotToken == "") != (c.TelegramChatID == 0) {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}
	return nil
}

// TelegramEnabled reports whether status alerts should be posted to Telegram.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

// DeriveChatURL maps http(s)://host/base to ws(s)://host/base/ws.
func DeriveChatURL(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse API_URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("API_URL must be http or https, got %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

// Helper functions

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		var n int64
		if _, err := fmt.Sscan(value, &n); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
