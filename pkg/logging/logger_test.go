package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{" info ", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLevels(t *testing.T) {
	ctx := context.Background()

	debug := New("debug")
	if !debug.Enabled(ctx, slog.LevelDebug) {
		t.Fatal("expected debug to be enabled")
	}

	warn := New("warn")
	if warn.Enabled(ctx, slog.LevelInfo) {
		t.Fatal("expected info to be suppressed at warn level")
	}
}

func TestNewWithWriterEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	logger.Info("booking recorded", "slot", "2026-03-07T09:00:00Z")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["msg"] != "booking recorded" {
		t.Errorf("unexpected msg %q", record["msg"])
	}
	if record["slot"] != "2026-03-07T09:00:00Z" {
		t.Errorf("unexpected slot %q", record["slot"])
	}
}

func TestWithCarriesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info").With("component", "sweeper")

	logger.Info("tick")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["component"] != "sweeper" {
		t.Errorf("expected component attribute, got %v", record["component"])
	}
}

func TestDefaultLoggerIsShared(t *testing.T) {
	if Default() != Default() {
		t.Fatal("expected Default to return the same instance")
	}
	if !Default().Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected default logger at info level")
	}
}
