package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/openkeypad/nx587-bridge/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	logger := New(config.LoggingConfig{
		Level:  "debug",
		Format: "text",
		Output: "stderr",
	}, "1.0.0")

	if logger == nil || logger.Logger == nil {
		t.Fatal("New returned unusable logger")
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level not enabled")
	}
}

func TestWith(t *testing.T) {
	logger := Default()
	child := logger.With("component", "panel")

	if child == nil || child.Logger == nil {
		t.Fatal("With returned unusable logger")
	}
	if child == logger {
		t.Error("With returned the same logger")
	}
}

func TestDefault(t *testing.T) {
	logger := Default()

	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("default logger should filter debug")
	}
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("default logger should allow info")
	}
}
