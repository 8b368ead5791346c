package observability

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"trace", LevelTrace},
		{"TRACE", LevelTrace},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLevelTraceBelowDebug(t *testing.T) {
	if LevelTrace >= slog.LevelDebug {
		t.Errorf("LevelTrace = %v, must be below %v", LevelTrace, slog.LevelDebug)
	}
}

func TestNewLoggerHonorsLevel(t *testing.T) {
	logger := NewLogger("error", "text")
	if logger.Enabled(nil, slog.LevelInfo) {
		t.Error("info should be disabled at error level")
	}
	if !logger.Enabled(nil, slog.LevelError) {
		t.Error("error should be enabled at error level")
	}

	traced := NewLogger("trace", "json")
	if !traced.Enabled(nil, LevelTrace) {
		t.Error("trace should be enabled at trace level")
	}
}
