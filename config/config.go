// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Defaults applied when the environment leaves a setting unset.
const (
	DefaultUserID  = "default-user"
	DefaultHost    = "127.0.0.1"
	DefaultPort    = 8080
	DefaultDataDir = ".unimem"
)

// Config holds everything the daemon needs to start.
type Config struct {
	// UserID is the identity memories are stored under when a request
	// does not name one.
	UserID string

	// Host and Port form the HTTP listen address.
	Host string
	Port int

	// UseLocal forces the JSON-file store even when an OpenAI key is
	// available.
	UseLocal bool

	// DataDir is where the local store keeps its file.
	DataDir string

	// Collection overrides the vector store's collection name prefix.
	Collection string

	// OpenAIAPIKey enables the vector backend; empty means local-only.
	OpenAIAPIKey string
	// OpenAIBaseURL points at an OpenAI-compatible server when set.
	OpenAIBaseURL string
	// EmbeddingModel overrides the default embedding model.
	EmbeddingModel string

	// AnthropicAPIKey enables fact extraction on Add.
	AnthropicAPIKey string
	// ExtractFacts turns extraction on; it needs AnthropicAPIKey.
	ExtractFacts bool

	// LogLevel is one of debug, info, warn, error.
	LogLevel slog.Level
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first; a missing file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := &Config{
		UserID:          envOr("MEMORY_USER_ID", DefaultUserID),
		Host:            envOr("API_HOST", DefaultHost),
		Port:            DefaultPort,
		DataDir:         defaultDataDir(),
		Collection:      os.Getenv("MEMORY_COLLECTION"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		EmbeddingModel:  os.Getenv("EMBEDDING_MODEL"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		LogLevel:        slog.LevelInfo,
	}

	if v := os.Getenv("API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("config: invalid API_PORT %q", v)
		}
		cfg.Port = port
	}
	if v := os.Getenv("MEMORY_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	cfg.UseLocal = envBool("MEMORY_USE_LOCAL")
	cfg.ExtractFacts = envBool("MEMORY_EXTRACT_FACTS")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLevel(v)
		if err != nil {
			return nil, err
		}
		cfg.LogLevel = level
	}

	if cfg.ExtractFacts && cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("config: MEMORY_EXTRACT_FACTS requires ANTHROPIC_API_KEY")
	}

	return cfg, nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// envOr returns the variable's value or a default when unset or empty.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envBool treats "1", "true", and "yes" (any case) as true.
func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: invalid LOG_LEVEL %q", s)
}

// defaultDataDir resolves ~/.unimem, falling back to the working directory
// when the home directory is unavailable.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}
