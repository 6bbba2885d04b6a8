// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	// Database
	DBDriver          string
	DatabaseURL       string
	SQLitePath        string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBLogSQL          bool

	// HTTP
	Port           int
	GatewayToken   string
	AllowedOrigins []string

	LogLevel slog.Level

	// Purge of soft-deleted matches. Zero interval disables the worker.
	PurgeInterval  time.Duration
	PurgeRetention time.Duration
}

// Load reads a .env file if present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBDriver:          strings.ToLower(envOr("DB_DRIVER", DriverPostgres)),
		DatabaseURL:       envOr("DATABASE_URL", ""),
		SQLitePath:        envOr("SQLITE_PATH", "tracker.db"),
		DBMaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 10),
		DBConnMaxLifetime: envDuration("DB_CONN_MAX_LIFETIME_MINUTES", 60, time.Minute),
		DBLogSQL:          envBool("DB_LOG_SQL", false),

		Port:         envInt("PORT", 5200),
		GatewayToken: envOr("GATEWAY_TOKEN", ""),
		AllowedOrigins: envList("ALLOWED_ORIGINS", []string{
			"http://localhost:3000",
		}),

		LogLevel: parseLevel(envOr("LOG_LEVEL", "info")),

		PurgeInterval:  envDuration("PURGE_INTERVAL_MINUTES", 60, time.Minute),
		PurgeRetention: envDuration("PURGE_RETENTION_DAYS", 30, 24*time.Hour),
	}

	switch cfg.DBDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL must be set when DB_DRIVER=%s", DriverPostgres)
		}
	case DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback int, unit time.Duration) time.Duration {
	return time.Duration(envInt(key, fallback)) * unit
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
