// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the portal server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string for sessions and
	// preferences. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:3000"]. Set CORS_ORIGINS to a
	// comma-separated list to override.
	CORSOrigins []string

	// APIURL is the base URL of the remote PortPilot API.
	APIURL string

	// UpstreamTimeout bounds every call to the remote API. Defaults to 15s.
	UpstreamTimeout time.Duration

	// MaxUploadBytes limits request bodies, spreadsheet uploads included.
	// Defaults to 10 MiB.
	MaxUploadBytes int64

	// CookieSecure marks the session and client cookies Secure. Enable it
	// whenever the portal is served over HTTPS.
	CookieSecure bool

	// SessionIdle is how long a session may go unused before it expires.
	// Defaults to 12h.
	SessionIdle time.Duration
}

// Load reads configuration from environment variables and returns a Config.
// A .env file in the working directory, when present, fills variables that
// are not already set. Returns an error listing any required variables that
// are not set and any values that do not parse.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		APIURL:      strings.TrimRight(getEnv("API_URL", "https://api.portpilot.co"), "/"),
	}

	var missing, invalid []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	var err error
	if cfg.UpstreamTimeout, err = time.ParseDuration(getEnv("UPSTREAM_TIMEOUT", "15s")); err != nil || cfg.UpstreamTimeout <= 0 {
		invalid = append(invalid, "UPSTREAM_TIMEOUT")
	}
	if cfg.SessionIdle, err = time.ParseDuration(getEnv("SESSION_IDLE", "12h")); err != nil || cfg.SessionIdle <= 0 {
		invalid = append(invalid, "SESSION_IDLE")
	}
	if cfg.MaxUploadBytes, err = strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", "10485760"), 10, 64); err != nil || cfg.MaxUploadBytes <= 0 {
		invalid = append(invalid, "MAX_UPLOAD_BYTES")
	}
	if cfg.CookieSecure, err = strconv.ParseBool(getEnv("COOKIE_SECURE", "false")); err != nil {
		invalid = append(invalid, "COOKIE_SECURE")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
