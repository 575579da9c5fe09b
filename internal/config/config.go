package config

import (
	"log/slog"
	"os"
	"strings"
)

// Config holds environment-driven configuration values.
type Config struct {
	// Inference backend
	Provider string
	Model    string

	// Provider credentials and endpoints
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OllamaHost      string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		Provider: getEnv("DOCGRADE_PROVIDER", "bedrock"),
		Model:    getEnv("DOCGRADE_MODEL", ""),

		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),

		LogFile:  getEnv("DOCGRADE_LOG_FILE", ""),
		LogLevel: parseLogLevel(getEnv("DOCGRADE_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
