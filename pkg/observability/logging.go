package observability

import (
	"log/slog"
	"os"
	"strings"
)

// LevelTrace sits below slog.LevelDebug for maximum verbosity. At trace
// level, the debug package emits full untruncated prompts and responses.
const LevelTrace = slog.LevelDebug - 4

// NewLogger builds a structured logger from the configured level and format.
// Unknown values fall back to info level and text format.
func NewLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
