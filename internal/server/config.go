// Package server provides configuration for the Scrawl service: runtime
// defaults, environment loading, and validation of the security-sensitive
// settings.
package server

import (
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration. Every field can be set through the
// environment; unset fields fall back to the documented defaults.
type Config struct {
	Port           string   `env:"SERVER_PORT,default=:8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`

	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE,default=4096"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST,default=20"`
	RateLimitRefill time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
	SendBuffer      int           `env:"SEND_BUFFER,default=256"`
	HistoryLimit    int64         `env:"HISTORY_LIMIT,default=50"`

	MongoURI      string `env:"MONGO_URI,default=mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE,default=scrawl"`

	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	PersistTimeout  time.Duration `env:"PERSIST_TIMEOUT,default=5s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig populates a Config from the environment and sanitizes it.
// A missing JWT_SECRET is an error: the token gate cannot run without one.
func LoadConfig() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("load config from environment: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}
	cfg.sanitize()
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Port:            ":8080",
		AllowedOrigins:  []string{"http://localhost:8080"},
		MaxMessageSize:  4096,
		RateLimitBurst:  20,
		RateLimitRefill: time.Second,
		SendBuffer:      256,
		HistoryLimit:    50,
		MongoURI:        "mongodb://localhost:27017",
		MongoDatabase:   "scrawl",
		TokenTTL:        24 * time.Hour,
		PersistTimeout:  5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func (c *Config) sanitize() {
	defaults := defaultConfig()

	if c.Port == "" {
		c.Port = defaults.Port
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = defaults.AllowedOrigins
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaults.MaxMessageSize
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = defaults.RateLimitBurst
	}
	if c.RateLimitRefill <= 0 {
		c.RateLimitRefill = defaults.RateLimitRefill
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaults.SendBuffer
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = defaults.HistoryLimit
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = defaults.TokenTTL
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = defaults.PersistTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
}

// RateLimit returns the per-connection rate limit parameters.
func (c *Config) RateLimit() RateLimitConfig {
	return RateLimitConfig{
		Burst:          c.RateLimitBurst,
		RefillInterval: c.RateLimitRefill,
	}
}
