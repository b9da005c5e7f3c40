package config

import (
	"fmt"
	"os"
)

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken string
	ClientID     string // used for the invite URL logged on startup

	// Bot defaults for newly seen guilds
	DefaultLang   string
	DefaultPrefix string

	// Storage configuration
	DataDir string // per-guild config snapshots
	LangDir string // language pack files

	// External services
	RoomServerURL string // base URL of the room service
	JokeAPIURL    string // base URL of the joke API, empty for the default

	// Logging
	LogLevel string

	// Environment
	Environment string // "development" or "production"
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	config := &Config{
		DiscordToken:  os.Getenv("DISCORD_TOKEN"),
		ClientID:      os.Getenv("CLIENT_ID"),
		DefaultLang:   getEnvWithDefault("DEFAULT_LANG", "en-US"),
		DefaultPrefix: getEnvWithDefault("DEFAULT_PREFIX", "!cy"),
		DataDir:       getEnvWithDefault("DATA_DIR", "./data"),
		LangDir:       getEnvWithDefault("LANG_DIR", "./langpacks"),
		RoomServerURL: os.Getenv("ROOM_SERVER_URL"),
		JokeAPIURL:    os.Getenv("JOKE_API_URL"),
		LogLevel:      getEnvWithDefault("LOG_LEVEL", "info"),
		Environment:   getEnvWithDefault("ENVIRONMENT", "development"),
	}

	if config.Environment != "test" {
		if config.DiscordToken == "" {
			return nil, fmt.Errorf("DISCORD_TOKEN is required")
		}
		if config.RoomServerURL == "" {
			return nil, fmt.Errorf("ROOM_SERVER_URL is required")
		}
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:   "test",
		DefaultLang:   "en-US",
		DefaultPrefix: "!cy",
		DataDir:       "./data",
		LangDir:       "./langpacks",
	}
}
