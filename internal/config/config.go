package config

import (
	"fmt"
	"log/slog"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	Port              int           `env:"PORT,default=8080"`
	DatabaseURL       string        `env:"DATABASE_URL,required=true"`
	RedisURL          string        `env:"REDIS_URL,required=true"`
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	TokenDuration     time.Duration `env:"TOKEN_DURATION,default=24h"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT,default=10s"`
	WSSendBuffer      int           `env:"WS_SEND_BUFFER,default=256"`
	MaxContentLength  int           `env:"MAX_CONTENT_LENGTH,default=2000"`
	MessageRateLimit  int           `env:"MESSAGE_RATE_LIMIT,default=20"`
	MessageRateWindow time.Duration `env:"MESSAGE_RATE_WINDOW,default=10s"`
}

// Load reads .env.local, falling back to .env, then the process environment.
// Variables already set in the environment win over the files.
func Load() (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			slog.Debug(".env not found, using environment variables")
		}
	}
	return FromEnviron()
}

func FromEnviron() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.JWTSecret == "":
		return fmt.Errorf("config error: JWT_SECRET is empty")
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config error: PORT %d out of range", c.Port)
	case c.TokenDuration <= 0:
		return fmt.Errorf("config error: TOKEN_DURATION must be positive")
	case c.RequestTimeout <= 0:
		return fmt.Errorf("config error: REQUEST_TIMEOUT must be positive")
	case c.MessageRateLimit < 0:
		return fmt.Errorf("config error: MESSAGE_RATE_LIMIT must not be negative")
	case c.MessageRateLimit > 0 && c.MessageRateWindow <= 0:
		return fmt.Errorf("config error: MESSAGE_RATE_WINDOW must be positive")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
