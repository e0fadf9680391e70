// Package debug provides category-based debug logging for the gateway.
//
// Two orthogonal controls:
//   - Categories (WHAT to debug): controlled via BRUECKE_DEBUG env or config
//   - Levels (HOW MUCH detail): controlled via BRUECKE_LOG_LEVEL env or config
//
// Usage:
//
//	debug.Log("upstream", "request", "method", "POST", "url", url)
//	if debug.Enabled("streaming") { /* expensive formatting */ }
//
// Categories: upstream, streaming, transport, auth, uploads, config, all.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
package debug

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace is below slog.LevelDebug for maximum verbosity.
// At TRACE, full untruncated upstream frames and bodies are logged.
const LevelTrace = slog.LevelDebug - 4

// categories holds the set of enabled debug categories.
// Access is read-only after Init(), so no synchronization needed.
var categories map[string]bool

func init() {
	// Initialize from environment for immediate availability.
	// Can be re-initialized later via Init() with config values.
	env := os.Getenv("BRUECKE_DEBUG")
	categories = parseCategories(env)
}

// Init configures the debug system. Called at startup with values
// from config and/or environment. Environment overrides config.
func Init(configCategories string, configLevel string) {
	cats := os.Getenv("BRUECKE_DEBUG")
	if cats == "" {
		cats = configCategories
	}
	categories = parseCategories(cats)

	level := os.Getenv("BRUECKE_LOG_LEVEL")
	if level == "" {
		level = configLevel
	}
	if level == "" {
		level = "INFO"
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})))
}

// Enabled reports whether debug output is active for the given category.
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
// Only visible when BRUECKE_LOG_LEVEL=TRACE.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(nil, LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether TRACE level is active for the given category.
func TraceIsEnabled(category string) bool {
	if !Enabled(category) {
		return false
	}
	return slog.Default().Enabled(nil, LevelTrace)
}

// Raw writes plain text to stderr without any slog formatting.
// Use this for copy-paste-ready output (full frame lines, bodies).
// Only emitted when category is enabled AND level is TRACE.
func Raw(category string, text string) {
	if !TraceIsEnabled(category) {
		return
	}
	fmt.Fprintln(os.Stderr, text)
}

// ParseLevel converts a level string to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
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
