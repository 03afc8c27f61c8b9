package config

import (
	"fmt"
	"os"

	"github.com/fernet/fernet-go"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	Import    ImportConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// ImportConfig holds fee-import configuration. Uploaded CSV files are
// archived encrypted at rest with the configured fernet key.
type ImportConfig struct {
	FernetKey *fernet.Key
}

// SchedulerConfig holds the nightly recalculation schedule.
type SchedulerConfig struct {
	RecalcEnabled  bool
	RecalcSchedule string
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/investor_portal.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost",
			},
		},
		Scheduler: SchedulerConfig{
			RecalcEnabled:  getEnv("RECALC_ENABLED", "true") == "true",
			RecalcSchedule: getEnv("RECALC_SCHEDULE", "0 2 * * *"),
		},
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	// A missing key disables the encrypted import archive rather than
	// failing startup; a malformed key is a configuration error.
	if keyStr := os.Getenv("FERNET_KEY"); keyStr != "" {
		key, err := fernet.DecodeKey(keyStr)
		if err != nil {
			return nil, fmt.Errorf("invalid FERNET_KEY: %w", err)
		}
		config.Import.FernetKey = key
	}

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
