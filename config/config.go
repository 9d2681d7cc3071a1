// Package config loads configuration from environment variables and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Delivery DeliveryConfig
	Auth     AuthConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	URL string
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	URL            string
	MigrationsPath string
}

// DeliveryConfig holds delivery engine configuration.
type DeliveryConfig struct {
	FlushDelay    time.Duration
	SendQueueSize int
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Domain         string
	SessionTTL     time.Duration
	TicketTTL      time.Duration
	NoncePerSecond float64
	NonceBurst     int
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr: getEnv("HERALD_ADDR", ":9000"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Postgres: PostgresConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Delivery: DeliveryConfig{
			FlushDelay:    getEnvDuration("FLUSH_DELAY", 2*time.Second),
			SendQueueSize: getEnvInt("WS_SEND_QUEUE", 256),
		},
		Auth: AuthConfig{
			Domain:         getEnv("AUTH_DOMAIN", ""),
			SessionTTL:     getEnvDuration("SESSION_TTL", 24*time.Hour),
			TicketTTL:      getEnvDuration("TICKET_TTL", 2*time.Minute),
			NoncePerSecond: getEnvFloat("NONCE_PER_SECOND", 1),
			NonceBurst:     getEnvInt("NONCE_BURST", 5),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if cfg.Postgres.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
