/*
Package config loads service configuration from the environment.

PURPOSE:
  Central place for every tunable the server reads. A .env file is
  loaded when present (local development); real environments set the
  variables directly. Missing values fall back to defaults that work
  out of the box.
*/
package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DBPath      string
	AppEnv      string
	LogLevel    slog.Level
	RuleSetPath string // optional YAML rule tables loaded on top of the shipped ones
}

// Load reads configuration from .env (if present) and the environment.
func Load() *Config {
	// Missing .env is fine; environment variables still apply.
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DBPath:      getEnv("DB_PATH", "./data/payroll.db"),
		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    parseLevel(getEnv("LOG_LEVEL", "info")),
		RuleSetPath: getEnv("RULESET_PATH", ""),
	}
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
