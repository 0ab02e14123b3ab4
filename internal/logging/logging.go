// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvLevel is the environment variable that selects log verbosity.
const EnvLevel = "LOG_LEVEL"

// Log levels understood by New.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// New returns a text logger writing to w at level. Stdout carries the MCP
// stdio transport, so callers pass os.Stderr.
func New(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// Level picks the effective level: the first non-empty of override, the
// LOG_LEVEL environment variable and fallback.
func Level(override, fallback string) string {
	if override != "" {
		return override
	}
	if env := os.Getenv(EnvLevel); env != "" {
		return env
	}
	return fallback
}

// ParseLevel converts a level name to slog.Level, case-insensitively.
// Unrecognized names mean INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn, "WARNING":
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
