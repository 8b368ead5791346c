// Package debug provides category-based debug logging for loupe.
//
// Two orthogonal controls:
//   - Categories (WHAT to debug): the LOUPE_DEBUG env var or logging.debug
//     in the config file, as a comma-separated list
//   - Levels (HOW MUCH detail): the regular logging.level setting; "trace"
//     unlocks full untruncated prompt and response bodies
//
// Usage:
//
//	debug.Log("engine", "iteration finished", "new_evidence", n)
//	if debug.Enabled("engine") { /* expensive formatting */ }
//
// Categories: engine, prompts, provider, embedding, ingest, vectordb, all.
package debug

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/loupelabs/loupe/pkg/observability"
)

// categories holds the set of enabled debug categories.
// Access is read-only after Init(), so no synchronization needed.
var categories map[string]bool

func init() {
	// Initialize from environment for immediate availability.
	// Can be re-initialized later via Init() with the config value.
	categories = parseCategories(os.Getenv("LOUPE_DEBUG"))
}

// Init configures the enabled categories. Called at startup with the
// logging.debug config value; the LOUPE_DEBUG environment variable takes
// precedence when set. The log level itself belongs to the logger setup
// in observability, not here.
func Init(configCategories string) {
	cats := os.Getenv("LOUPE_DEBUG")
	if cats == "" {
		cats = configCategories
	}
	categories = parseCategories(cats)
}

// Enabled reports whether debug output is active for the given category.
// This is a constant-time map lookup with zero allocation.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug message for the given category.
// If the category is not enabled, this is a no-op.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message for the given category.
// Only visible when logging.level is "trace".
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(nil, observability.LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether trace output is active for the given category.
func TraceIsEnabled(category string) bool {
	if !Enabled(category) {
		return false
	}
	return slog.Default().Enabled(nil, observability.LevelTrace)
}

// Raw writes plain text to stderr without any slog formatting.
// Use this for copy-paste-ready output (full prompts, completions).
// Only emitted when the category is enabled AND the level is trace.
func Raw(category string, text string) {
	if !TraceIsEnabled(category) {
		return
	}
	fmt.Fprintln(os.Stderr, text)
}

// Categories returns the list of enabled categories.
func Categories() []string {
	var result []string
	for k := range categories {
		result = append(result, k)
	}
	return result
}

// Truncate returns s truncated to maxLen characters, with "..." appended
// if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	if s == "" {
		return m
	}
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
