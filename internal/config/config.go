package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"VERSION" default:"dev"`

	// Hosted backend credentials. The server tolerates their absence (the
	// session store fails open to the anonymous state); the provisioning
	// CLI treats a missing value as fatal.
	BackendURL     string `envconfig:"PORTAL_BACKEND_URL" default:""`
	BackendAnonKey string `envconfig:"PORTAL_BACKEND_ANON_KEY" default:""`

	// AuthTimeout bounds both the initial session fetch and each
	// admin-role lookup.
	AuthTimeout time.Duration `envconfig:"PORTAL_AUTH_TIMEOUT" default:"5s"`

	// DocumentBucket is the storage bucket holding uploaded documents.
	DocumentBucket string `envconfig:"PORTAL_DOCUMENT_BUCKET" default:"documents"`

	// AdminDatabaseURL lets the provisioning CLI apply the role update
	// directly when row-level policy blocks the REST path. Unused by the
	// server.
	AdminDatabaseURL string `envconfig:"ADMIN_DATABASE_URL" default:""`
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// HasBackend reports whether the hosted backend is configured at all.
func (c *Config) HasBackend() bool {
	return c.BackendURL != "" && c.BackendAnonKey != ""
}
