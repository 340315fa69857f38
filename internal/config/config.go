package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds runtime configuration sourced from environment variables
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string        `env:"PORT" envDefault:"8000"`
		ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
		WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
		ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
		MaxBodyBytes    int64         `env:"MAX_BODY_BYTES" envDefault:"5242880"` // 5MB
		CORSOrigins     []string      `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN           string        `env:"DSN,required,notEmpty"`
		MaxRetries    int           `env:"MAX_RETRIES" envDefault:"5"`
		RetryInterval time.Duration `env:"RETRY_INTERVAL" envDefault:"5s"`
	} `envPrefix:"DATABASE_"`
	Session struct {
		Secret     string        `env:"SECRET,required,notEmpty"`
		TTL        time.Duration `env:"TTL" envDefault:"24h"`
		CookieName string        `env:"COOKIE_NAME" envDefault:"pettycash_session"`
	} `envPrefix:"SESSION_"`
	Storage struct {
		SignaturesDir string `env:"SIGNATURES_DIR" envDefault:"data/signatures"`
	} `envPrefix:"STORAGE_"`
	Seed struct {
		Enabled  bool   `env:"ENABLED" envDefault:"true"`
		Password string `env:"PASSWORD" envDefault:"password123"`
	} `envPrefix:"SEED_"`
	Redis struct {
		Addr     string `env:"ADDR"` // empty disables session revocation
		Password string `env:"PASSWORD"`
		DB       int    `env:"DB" envDefault:"0"`
	} `envPrefix:"REDIS_"`
	RabbitMQ struct {
		DSN            string        `env:"DSN"` // empty disables decision notifications
		Queue          string        `env:"QUEUE" envDefault:"expense_decisions"`
		PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"10s"`
	} `envPrefix:"RABBITMQ_"`
	Mail struct {
		From string `env:"FROM" envDefault:"pettycash@example.com"`
		SMTP struct {
			Host        string        `env:"HOST" envDefault:"localhost"`
			Port        int           `env:"PORT" envDefault:"465"`
			Username    string        `env:"USERNAME"`
			Password    string        `env:"PASSWORD"`
			DialTimeout time.Duration `env:"DIAL_TIMEOUT" envDefault:"10s"`
		} `envPrefix:"SMTP_"`
		// failed sends are retried this many times, then parked on <queue>.failed
		MaxRetries   int           `env:"MAX_RETRIES" envDefault:"5"`
		RetryBackoff time.Duration `env:"RETRY_BACKOFF" envDefault:"30s"`
	} `envPrefix:"MAIL_"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		var aggErr env.AggregateError
		if errors.As(err, &aggErr) && len(aggErr.Errors) > 0 {
			// first error only, keeps startup logs readable
			return nil, aggErr.Errors[0]
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// IsProduction reports whether cookies should be marked Secure.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c *Config) HTTPAddress() string {
	return ":" + c.Server.Port
}
