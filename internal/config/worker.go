package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/carepoint/portal-api/internal/docstore/postgres"
)

// WorkerConfig configures the maintenance worker. The worker runs
// headless in containers, so it reads environment variables only.
type WorkerConfig struct {
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"carepoint"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	// SweepInterval is how often expired auth tokens are purged.
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	// TokenRetention keeps used or expired tokens around for this long
	// before deletion, for support lookups.
	TokenRetention time.Duration `envconfig:"TOKEN_RETENTION" default:"24h"`

	HealthPort int    `envconfig:"HEALTH_PORT" default:"8081"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty  bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// LoadWorkerConfig populates WorkerConfig from the environment.
func LoadWorkerConfig() (*WorkerConfig, error) {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process worker env: %w", err)
	}
	return &cfg, nil
}

// StoreConfig converts the worker's database settings into the document
// store's connection config.
func (c *WorkerConfig) StoreConfig() postgres.Config {
	return postgres.Config{
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		Name:     c.DBName,
		SSLMode:  c.DBSSLMode,
	}
}
