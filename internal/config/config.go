// Package config provides environment configuration for the chat binaries.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the server and the terminal client.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	JWTSecret string

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	DefaultModel    string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool

	// Chat client settings
	ChatEndpoint     string
	AuthToken        string
	HandshakeTimeout time.Duration

	// ResponseTimeout bounds the wait for an assistant reply. Zero leaves
	// pending requests pending indefinitely; set it explicitly.
	ResponseTimeout time.Duration

	// Reconnect policy for the client's supervisory loop.
	ReconnectMaxAttempts     int
	ReconnectInitialInterval time.Duration
	ReconnectMaxInterval     time.Duration
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		DefaultModel:    getEnv("DEFAULT_MODEL", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),

		// Chat client
		ChatEndpoint:     getEnv("CHAT_ENDPOINT", "ws://localhost:8080/ws/chat"),
		AuthToken:        getEnv("CHAT_TOKEN", ""),
		HandshakeTimeout: getDurationEnv("CHAT_HANDSHAKE_TIMEOUT", 10*time.Second),

		ResponseTimeout: getDurationEnv("CHAT_RESPONSE_TIMEOUT", 0),

		ReconnectMaxAttempts:     getIntEnv("CHAT_RECONNECT_MAX_ATTEMPTS", 0),
		ReconnectInitialInterval: getDurationEnv("CHAT_RECONNECT_INITIAL_INTERVAL", time.Second),
		ReconnectMaxInterval:     getDurationEnv("CHAT_RECONNECT_MAX_INTERVAL", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
