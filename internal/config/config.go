package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port                   int      `env:"PORT" envDefault:"8080"`
	DatabaseDriver         string   `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL            string   `env:"DATABASE_URL,required"`
	RedisURL               string   `env:"REDIS_URL"`
	PublicBaseURL          string   `env:"PUBLIC_BASE_URL" envDefault:""`
	StaticDir              string   `env:"STATIC_DIR" envDefault:"static/remote"`
	SessionMaxAgeSeconds   int      `env:"SESSION_MAX_AGE_SECONDS" envDefault:"86400"`
	CleanupIntervalSeconds int      `env:"CLEANUP_INTERVAL_SECONDS" envDefault:"300"`
	CreateRateLimitPerMin  int      `env:"CREATE_RATE_LIMIT_PER_MIN" envDefault:"10"`
	CORSAllowedOrigins     []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	LogLevel               string   `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) SessionMaxAge() time.Duration {
	return time.Duration(c.SessionMaxAgeSeconds) * time.Second
}

func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.DatabaseDriver)
	}

	if c.SessionMaxAgeSeconds <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE_SECONDS must be positive")
	}
	if c.CleanupIntervalSeconds <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL_SECONDS must be positive")
	}

	if isProduction {
		if c.PublicBaseURL == "" {
			log.Warn().Msg("PUBLIC_BASE_URL is empty in production: QR codes will carry relative links")
		}
		if c.RedisURL == "" {
			log.Warn().Msg("REDIS_URL is empty in production: session events only reach clients on this instance")
		} else if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.DatabaseDriver == DriverSQLite {
			log.Warn().Msg("DATABASE_DRIVER=sqlite in production: sessions are not shared across instances")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
