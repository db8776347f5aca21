// Package logging configures the process-wide slog logger.
//
// Logs are written to stderr as JSON with the module name and version attached
// to every record. Debug level also records the source location.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a case-insensitive level name to a slog.Level, falling back
// to info for anything it does not recognize.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewStructuredLogger returns a JSON logger tagged with module and version.
func NewStructuredLogger(module, version, level string) *slog.Logger {
	lvl := ParseLevel(level)
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug,
	})
	return slog.New(handler).With(
		slog.String("module", module),
		slog.String("version", version),
	)
}

// SetDefaultStructuredLogger installs NewStructuredLogger as the slog default.
func SetDefaultStructuredLogger(module, version, level string) {
	slog.SetDefault(NewStructuredLogger(module, version, level))
}

// EnvLogLevel names the environment variable holding the log level.
const EnvLogLevel = "LOG_LEVEL"

// SetDefaultFromEnv installs the structured logger at the level in
// LOG_LEVEL. Binaries call it before loading configuration so early
// failures are logged as JSON too.
func SetDefaultFromEnv(module, version string) {
	SetDefaultStructuredLogger(module, version, os.Getenv(EnvLogLevel))
}
