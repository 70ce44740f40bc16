package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/carepoint/portal-api/internal/docstore/postgres"
	"github.com/carepoint/portal-api/internal/email"
	"github.com/carepoint/portal-api/pkg/auth"
	"github.com/carepoint/portal-api/pkg/messaging/redis"
)

// Config is the full application configuration. Values come from
// config.yaml, overridden by environment variables (SERVER_PORT,
// DATABASE_PASSWORD, and so on).
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Blob      BlobConfig      `mapstructure:"blob"`
	Roster    RosterConfig    `mapstructure:"roster"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Security  SecurityConfig  `mapstructure:"security"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// StoreConfig converts the section into the document store's own
// connection config.
func (c DatabaseConfig) StoreConfig() postgres.Config {
	return postgres.Config{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Name:     c.Name,
		SSLMode:  c.SSLMode,
	}
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// BrokerConfig converts the section into the Redis broker's config.
func (c RedisConfig) BrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

type JWTConfig struct {
	Secret        string        `mapstructure:"secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	Expiry        time.Duration `mapstructure:"expiry"`
	RefreshExpiry time.Duration `mapstructure:"refresh_expiry"`
}

// AuthConfig converts the section into the token service's config.
func (c JWTConfig) AuthConfig() auth.Config {
	return auth.Config{
		Secret:        c.Secret,
		RefreshSecret: c.RefreshSecret,
		Expiry:        c.Expiry,
		RefreshExpiry: c.RefreshExpiry,
	}
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	// BaseURL is the public portal address used when building
	// verification and password reset links.
	BaseURL string `mapstructure:"base_url"`
}

// EmailConfig converts the section into the mail service's config.
func (c SMTPConfig) EmailConfig() email.Config {
	return email.Config{
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		From:     c.From,
		BaseURL:  c.BaseURL,
	}
}

type BlobConfig struct {
	// Dir is the root directory for uploaded files.
	Dir string `mapstructure:"dir"`
	// MaxSizeMB caps a single upload.
	MaxSizeMB int64 `mapstructure:"max_size_mb"`
}

type RosterConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type SecurityConfig struct {
	// NotesEncryptionKey enables at-rest encryption of medical note
	// bodies when set. Leave empty to store them as written.
	NotesEncryptionKey string `mapstructure:"notes_encryption_key"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// LoadConfig reads config.yaml from the working directory or ./config,
// then applies environment overrides. A missing file is not an error so
// containers can run on environment variables alone.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret is required")
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "carepoint")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("jwt.expiry", 24*time.Hour)
	v.SetDefault("jwt.refresh_expiry", 7*24*time.Hour)

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "no-reply@carepoint.local")
	v.SetDefault("smtp.base_url", "http://localhost:3000")

	v.SetDefault("blob.dir", "./uploads")
	v.SetDefault("blob.max_size_mb", 10)

	v.SetDefault("roster.refresh_interval", time.Minute)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 50)
	v.SetDefault("rate_limit.burst", 100)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}
