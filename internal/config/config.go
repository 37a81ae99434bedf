// Package config provides configuration loading and validation for the job dashboard.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables required for the dashboard to operate.
const (
	EnvDatabaseURL  = "DATABASE_URL"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvJWTSecret    = "JWT_SECRET"
)

// Config holds server-level configuration read from the environment.
type Config struct {
	Port         int
	DatabaseURL  string
	GeminiAPIKey string
	JWTSecret    string
}

// Load reads configuration from the environment. Missing required values do
// not fail the load; they are reported by Validate so the server can present
// setup instructions instead of crashing at startup.
func Load() (*Config, error) {
	port := 8080
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %v", err)
		}
		port = p
	}

	return &Config{
		Port:         port,
		DatabaseURL:  os.Getenv(EnvDatabaseURL),
		GeminiAPIKey: os.Getenv(EnvGeminiAPIKey),
		JWTSecret:    os.Getenv(EnvJWTSecret),
	}, nil
}

// Status is the result of validating startup configuration: either everything
// required is present, or Missing lists the environment variables still unset.
type Status struct {
	Missing []string
}

// Configured reports whether all required configuration is present.
func (s Status) Configured() bool {
	return len(s.Missing) == 0
}

// Validate checks the configuration for required values and returns a Status.
// Presence is determined by the loaded values being set, never by comparing a
// value against a known placeholder.
func (c *Config) Validate() Status {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, EnvDatabaseURL)
	}
	if c.GeminiAPIKey == "" {
		missing = append(missing, EnvGeminiAPIKey)
	}
	if c.JWTSecret == "" {
		missing = append(missing, EnvJWTSecret)
	}
	return Status{Missing: missing}
}
