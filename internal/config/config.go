// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig controls the postgres connection pool. An empty DSN selects
// the in-memory store.
type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // seconds
}

// RedisConfig controls the optional leaderboard cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggingConfig mirrors pkg/logger configuration.
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// BibleConfig points at the upstream scripture API.
type BibleConfig struct {
	URL string
	Key string
	RPS float64
}

// Config is the full runtime configuration.
type Config struct {
	Server            ServerConfig
	Database          DatabaseConfig
	Redis             RedisConfig
	Logging           LoggingConfig
	Bible             BibleConfig
	TokenSecret       string
	WebhookSecret     string
	ReconcileSchedule string
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			DSN:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Bible: BibleConfig{
			URL: os.Getenv("BIBLE_API_URL"),
			Key: os.Getenv("BIBLE_API_KEY"),
			RPS: getEnvFloat("BIBLE_API_RPS", 10),
		},
		TokenSecret:       os.Getenv("JWT_SECRET"),
		WebhookSecret:     os.Getenv("BILLING_WEBHOOK_SECRET"),
		ReconcileSchedule: os.Getenv("RECONCILE_SCHEDULE"),
	}

	if strings.TrimSpace(cfg.TokenSecret) == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT %d out of range", cfg.Server.Port)
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
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}
