package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all configuration for the gateway
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Uploads  UploadConfig
	Auth     AuthConfig
	Logging  LoggingConfig
}

// ServerConfig holds the listener and upstream settings
type ServerConfig struct {
	ListenAddr   string        `validate:"required"`
	BackendURL   string        `validate:"required,url"`
	CORSOrigins  []string      `validate:"min=1,dive,url"`
	ProxyTimeout time.Duration `validate:"gt=0"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string `validate:"required"`
}

// UploadConfig holds upload storage configuration
type UploadConfig struct {
	Dir string `validate:"required"`
	// CleanupSchedule is a cron expression for the upload janitor, empty disables it
	CleanupSchedule string `validate:"omitempty,cron"`
}

// AuthConfig holds the optional verification of backend access tokens
type AuthConfig struct {
	// SigningKey is the HS256 key the backend signs access tokens with.
	// When set, uploads require a valid bearer token.
	SigningKey string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `validate:"oneof=debug info warn warning error"`
	Format string `validate:"oneof=json console"` // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	proxyTimeout := 30 * time.Second
	if v := os.Getenv("PROXY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PROXY_TIMEOUT %q: %w", v, err)
		}
		proxyTimeout = d
	}

	cfg := &Config{
		Server: ServerConfig{
			ListenAddr:   getEnv("LISTEN_ADDR", ":3000"),
			BackendURL:   strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8000/api"), "/"),
			CORSOrigins:  splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
			ProxyTimeout: proxyTimeout,
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "shelfdesk.sqlite"),
		},
		Uploads: UploadConfig{
			Dir:             getEnv("UPLOAD_DIR", "uploads"),
			CleanupSchedule: getEnv("UPLOAD_CLEANUP_SCHEDULE", "0 3 * * *"),
		},
		Auth: AuthConfig{
			SigningKey: os.Getenv("JWT_SIGNING_KEY"),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and the cleanup schedule
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// newValidator registers "cron" for standard five-field expressions
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())
		return err == nil
	})
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
