package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(envListenAddr, "")
	t.Setenv(envDBPath, "")
	t.Setenv(envLogLevel, "")
	t.Setenv(envEventLog, "")
	t.Setenv(envRetention, "")
	t.Setenv(envCompletion, "")

	cfg := Load()

	if cfg.ListenAddr != defaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, defaultListenAddr)
	}
	if cfg.DBPath != defaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, defaultDBPath)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.EventLog != defaultEventLog {
		t.Errorf("EventLog = %q, want %q", cfg.EventLog, defaultEventLog)
	}
	if cfg.Retention != defaultRetention {
		t.Errorf("Retention = %v, want %v", cfg.Retention, defaultRetention)
	}
	if cfg.Completion != defaultCompletion {
		t.Errorf("Completion = %q, want %q", cfg.Completion, defaultCompletion)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(envListenAddr, ":9090")
	t.Setenv(envDBPath, "/tmp/test.db")
	t.Setenv(envDataDir, "/tmp/data")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envEventLog, "SQLite")
	t.Setenv(envRetention, "90")
	t.Setenv(envCompletion, "Anthropic")

	cfg := Load()

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if cfg.DataDir != "/tmp/data" {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, "/tmp/data")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.EventLog != "sqlite" {
		t.Errorf("EventLog = %q, want sqlite", cfg.EventLog)
	}
	if cfg.Retention != 90*time.Second {
		t.Errorf("Retention = %v, want 90s", cfg.Retention)
	}
	if cfg.Completion != "anthropic" {
		t.Errorf("Completion = %q, want anthropic", cfg.Completion)
	}
}

func TestLoadIgnoresInvalidRetention(t *testing.T) {
	for _, v := range []string{"abc", "-5", "0"} {
		t.Setenv(envRetention, v)
		cfg := Load()
		if cfg.Retention != defaultRetention {
			t.Errorf("Retention with %q = %v, want %v", v, cfg.Retention, defaultRetention)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := parseLogLevel(tt.input)
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	logger.Info("test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("logger output is not valid JSON: %v\noutput: %s", err, buf.String())
	}

	for _, key := range []string{"time", "level", "msg"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("JSON output missing expected key %q", key)
		}
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}
