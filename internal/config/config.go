package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	// Server
	Port            string        `envconfig:"PORT" default:"8080"`
	Environment     string        `envconfig:"ENV" default:"development"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	// Storage
	DatabaseURL   string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL      string `envconfig:"REDIS_URL" required:"true"`
	MigrationsDir string `envconfig:"MIGRATIONS_DIR" default:"migrations"`

	// Websocket connections. Zero pong wait and ping period leave idle
	// connections open indefinitely.
	SendBuffer   int           `envconfig:"WS_SEND_BUFFER" default:"256"`
	WriteTimeout time.Duration `envconfig:"WS_WRITE_TIMEOUT" default:"10s"`
	ReadLimit    int64         `envconfig:"WS_READ_LIMIT" default:"4096"`
	PongWait     time.Duration `envconfig:"WS_PONG_WAIT" default:"0s"`
	PingPeriod   time.Duration `envconfig:"WS_PING_PERIOD" default:"0s"`

	// Limits. Zero disables the corresponding check.
	MessageRateLimit int     `envconfig:"MESSAGE_RATE_LIMIT" default:"20"`
	MaxConnections   int     `envconfig:"MAX_CONNECTIONS" default:"0"`
	HandshakeRate    float64 `envconfig:"HANDSHAKE_RATE" default:"10"`
	HandshakeBurst   int     `envconfig:"HANDSHAKE_BURST" default:"20"`

	// Persistence circuit breaker
	PersistFailureThreshold int           `envconfig:"PERSIST_FAILURE_THRESHOLD" default:"5"`
	PersistCooldown         time.Duration `envconfig:"PERSIST_COOLDOWN" default:"30s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.PingPeriod > 0 && cfg.PongWait > 0 && cfg.PingPeriod >= cfg.PongWait {
		return nil, fmt.Errorf("WS_PING_PERIOD (%s) must be shorter than WS_PONG_WAIT (%s)", cfg.PingPeriod, cfg.PongWait)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
