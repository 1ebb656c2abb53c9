package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	apperrors "memgraph/backend/pkg/errors"
)

// Storage drivers accepted in DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	// App
	Port     string
	Env      string
	LogLevel string

	// Storage
	DBDriver    string
	SQLitePath  string
	PostgresURL string

	// Concurrency
	LockTimeout     time.Duration
	ConflictRetries int

	// Snapshots
	SnapshotKeepLast int
	SnapshotMaxAge   time.Duration

	// Neo4j projection (disabled when URI is empty)
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Seeding
	SeedOnEmpty bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", ""),
		DBDriver:         getEnv("DB_DRIVER", DriverSQLite),
		SQLitePath:       getEnv("SQLITE_PATH", "data/memgraph.db"),
		PostgresURL:      getEnv("POSTGRES_URL", ""),
		LockTimeout:      time.Duration(getEnvInt("LOCK_TIMEOUT_MS", 2000)) * time.Millisecond,
		ConflictRetries:  getEnvInt("CONFLICT_RETRIES", 5),
		SnapshotKeepLast: getEnvInt("SNAPSHOT_KEEP_LAST", 10),
		SnapshotMaxAge:   time.Duration(getEnvInt("SNAPSHOT_MAX_AGE_HOURS", 0)) * time.Hour,
		Neo4jURI:         getEnv("NEO4J_URI", ""),
		Neo4jUser:        getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:    getEnv("NEO4J_PASSWORD", ""),
		SeedOnEmpty:      getEnvBool("SEED_ON_EMPTY", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return apperrors.NewConfigMissingRequired("SQLITE_PATH")
		}
	case DriverPostgres:
		if c.PostgresURL == "" {
			return apperrors.NewConfigMissingRequired("POSTGRES_URL")
		}
	default:
		return apperrors.NewConfigValidationFailed("DB_DRIVER", fmt.Sprintf("unknown driver %q", c.DBDriver))
	}
	if c.LockTimeout <= 0 {
		return apperrors.NewConfigValidationFailed("LOCK_TIMEOUT_MS", "must be positive")
	}
	if c.ConflictRetries < 0 {
		return apperrors.NewConfigValidationFailed("CONFLICT_RETRIES", "must not be negative")
	}
	if c.SnapshotKeepLast < 1 {
		return apperrors.NewConfigValidationFailed("SNAPSHOT_KEEP_LAST", "must be at least 1")
	}
	if c.Neo4jURI != "" && c.Neo4jPassword == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ProjectionEnabled reports whether a Neo4j target is configured
func (c *Config) ProjectionEnabled() bool {
	return c.Neo4jURI != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseBool(value); err == nil {
			return result
		}
	}
	return defaultValue
}
