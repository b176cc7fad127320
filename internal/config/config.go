package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr = ":8080"
	defaultDBPath     = "lumen.db"
	defaultDataDir    = "data"
	defaultEventLog   = "memory"
	defaultCompletion = "openai"
	defaultRetention  = 30 * time.Second

	envListenAddr   = "LUMEN_LISTEN_ADDR"
	envDBPath       = "LUMEN_DB_PATH"
	envDataDir      = "LUMEN_DATA_DIR"
	envLogLevel     = "LUMEN_LOG_LEVEL"
	envEventLog     = "LUMEN_EVENTLOG"
	envRetention    = "LUMEN_RETENTION_S"
	envCompletion   = "LUMEN_COMPLETION"
	envOpenAIKey    = "OPENAI_API_KEY"
	envAnthropicKey = "ANTHROPIC_API_KEY"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	DataDir    string
	LogLevel   slog.Level

	// EventLog selects the event log backend: "memory" or "sqlite".
	EventLog string
	// Retention is how long terminal task logs remain readable.
	Retention time.Duration

	// Completion selects the completion provider: "openai" or "anthropic".
	Completion   string
	OpenAIKey    string
	AnthropicKey string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr: defaultListenAddr,
		DBPath:     defaultDBPath,
		DataDir:    defaultDataDir,
		LogLevel:   slog.LevelInfo,
		EventLog:   defaultEventLog,
		Retention:  defaultRetention,
		Completion: defaultCompletion,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envEventLog); v != "" {
		cfg.EventLog = strings.ToLower(v)
	}
	if v := os.Getenv(envRetention); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Retention = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv(envCompletion); v != "" {
		cfg.Completion = strings.ToLower(v)
	}
	cfg.OpenAIKey = os.Getenv(envOpenAIKey)
	cfg.AnthropicKey = os.Getenv(envAnthropicKey)

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
