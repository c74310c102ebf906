package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ServeEnv holds process settings for the HTTP server that should not live in the
// workspace file.
type ServeEnv struct {
	Addr                   string        `env:"CAMPAIGNLINE_ADDR" envDefault:"127.0.0.1:8080"`
	BasePath               string        `env:"CAMPAIGNLINE_BASE_PATH" envDefault:"/v0"`
	JWTSecret              string        `env:"CAMPAIGNLINE_JWT_SECRET"`
	AllowLegacyActorHeader bool          `env:"CAMPAIGNLINE_ALLOW_LEGACY_ACTOR_HEADER" envDefault:"false"`
	ShutdownTimeout        time.Duration `env:"CAMPAIGNLINE_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	WebhookInterval        time.Duration `env:"CAMPAIGNLINE_WEBHOOK_INTERVAL" envDefault:"2s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServeEnv parses ServeEnv and checks the secret is present.
func LoadServeEnv() (ServeEnv, error) {
	var cfg ServeEnv
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if cfg.JWTSecret == "" && !cfg.AllowLegacyActorHeader {
		return cfg, fmt.Errorf("CAMPAIGNLINE_JWT_SECRET is required for bearer auth")
	}
	return cfg, nil
}
