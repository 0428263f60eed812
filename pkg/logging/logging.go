// Package logging configures structured logging with log/slog.
//
// Usage:
//
//	logging.Setup("text")  // colored tint output, level from LOG_LEVEL env
//	logging.Setup("json")  // JSON handler for production
//
// Environment variables:
//
//	LOG_LEVEL: debug, info, warn, error (default: info)
package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup configures the default logger in the given format at the level
// specified by the LOG_LEVEL env var and returns it.
func Setup(format string) *slog.Logger {
	return SetupWithLevel(format, levelFromEnv())
}

// SetupWithLevel configures the default logger at the given level.
func SetupWithLevel(format string, level slog.Level) *slog.Logger {
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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
