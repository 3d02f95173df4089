package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

const devSecretKey = "dev-secret-change-in-production"

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Env         string `env:"ENV" envDefault:"development"`
	DatabaseDSN string `env:"DATABASE_DSN" envDefault:"root:password@tcp(127.0.0.1:3306)/accounts?parseTime=true"`
	SecretKey   string `env:"SECRET_KEY" envDefault:"dev-secret-change-in-production"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	// Password reset tokens expire once the current time bucket is more than
	// ResetTimeout past the bucket they were issued in.
	ResetTimeout     time.Duration `env:"PASSWORD_RESET_TIMEOUT" envDefault:"72h"`
	ResetGranularity time.Duration `env:"PASSWORD_RESET_GRANULARITY" envDefault:"1s"`
	ResetURL         string        `env:"PASSWORD_RESET_URL" envDefault:"http://localhost:8080/api/v1/auth/password-reset/confirm"`
}

// Parse reads the configuration from the environment without any
// production checks.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.ResetGranularity <= 0 {
		return Config{}, fmt.Errorf("PASSWORD_RESET_GRANULARITY must be positive, got %s", cfg.ResetGranularity)
	}
	return cfg, nil
}

func Load() Config {
	cfg, err := Parse()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if cfg.IsProduction() && cfg.SecretKey == devSecretKey {
		slog.Error("SECRET_KEY must be set in production environment")
		os.Exit(1)
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}
